package google

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"manifold/internal/rlm"
)

func TestToContentsSeparatesSystemInstruction(t *testing.T) {
	contents, systemInstruction := toContents([]rlm.Message{
		{Role: rlm.RoleSystem, Content: "be terse"},
		{Role: rlm.RoleUser, Content: "hi"},
		{Role: rlm.RoleAssistant, Content: "hello"},
	})

	if assert.NotNil(t, systemInstruction) {
		assert.Equal(t, "be terse", systemInstruction.Parts[0].Text)
	}
	if assert.Len(t, contents, 2) {
		assert.Equal(t, "hi", contents[0].Parts[0].Text)
		assert.Equal(t, "hello", contents[1].Parts[0].Text)
	}
}

func TestClientSupportsTokenizationIsFalse(t *testing.T) {
	client := &Client{model: defaultModel}
	assert.False(t, client.SupportsTokenization())
	assert.Nil(t, client.Tokenizer(nil))
}
