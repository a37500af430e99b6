package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"manifold/internal/rlm"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("hello world"), 0)
}

func TestEstimateTokensForMessages(t *testing.T) {
	msgs := []rlm.Message{{Role: rlm.RoleUser, Content: "hello"}, {Role: rlm.RoleAssistant, Content: "world"}}
	assert.Equal(t, EstimateTokens("hello")+EstimateTokens("world"), EstimateTokensForMessages(msgs))
}

func TestHeuristicEncodingFallsBackWithoutEncoder(t *testing.T) {
	h := &HeuristicEncoding{}
	assert.Equal(t, EstimateTokens("abc"), h.CountTokens("abc"))
}

func TestBudgetUseAndFree(t *testing.T) {
	b := NewBudget(100, 20)
	assert.Equal(t, 80, b.Available())
	assert.True(t, b.Use(50))
	assert.Equal(t, 30, b.Available())
	assert.False(t, b.Use(1000))
	b.Free(50)
	assert.Equal(t, 80, b.Available())
}

func TestBudgetIsCritical(t *testing.T) {
	b := NewBudget(100, 0)
	b.Use(90)
	assert.True(t, b.IsCritical())
}

func TestSplitTextFixedByCharCount(t *testing.T) {
	split := NewSplitTextFunc()
	text := strings.Repeat("a", 25)
	chunks := split(text, "fixed", map[string]any{"size": float64(10)})
	assert.Len(t, chunks, 3)
}

func TestSplitTextUnknownStrategyFallsBackToFixed(t *testing.T) {
	split := NewSplitTextFunc()
	chunks := split("hello world", "not-a-real-strategy", nil)
	assert.NotEmpty(t, chunks)
}
