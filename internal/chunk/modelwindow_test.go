package chunk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelContextWindowKnownModel(t *testing.T) {
	tokens, known := ModelContextWindow("gpt-4o")
	assert.True(t, known)
	assert.Equal(t, 128_000, tokens)
}

func TestModelContextWindowPrefixMatch(t *testing.T) {
	tokens, known := ModelContextWindow("gpt-4o-mini-2024-07-18")
	assert.True(t, known)
	assert.Equal(t, 128_000, tokens)
}

func TestModelContextWindowUnknownFallsBack(t *testing.T) {
	tokens, known := ModelContextWindow("some-future-model")
	assert.False(t, known)
	assert.Equal(t, 32_000, tokens)
}

func TestModelContextWindowEmptyModel(t *testing.T) {
	tokens, known := ModelContextWindow("")
	assert.False(t, known)
	assert.Equal(t, 0, tokens)
}

func TestModelContextWindowEnvOverride(t *testing.T) {
	t.Setenv("MODEL_MY_CUSTOM_MODEL_CONTEXT_TOKENS", "55000")
	tokens, known := ModelContextWindow("my-custom-model")
	assert.True(t, known)
	assert.Equal(t, 55_000, tokens)
}

func TestModelContextWindowGlobalOverride(t *testing.T) {
	os.Unsetenv("MODEL_UNSEEN_MODEL_CONTEXT_TOKENS")
	t.Setenv("RLM_CONTEXT_WINDOW_TOKENS", "99000")
	tokens, known := ModelContextWindow("unseen-model")
	assert.True(t, known)
	assert.Equal(t, 99_000, tokens)
}
