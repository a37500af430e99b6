// Package chunk provides context-splitting and token-accounting helpers used
// to keep the root loop's prompts and sub-LLM queries within model context
// windows.
package chunk

import (
	"context"

	"manifold/internal/rlm"
)

// Tokenizer provides accurate, provider-specific token counting. Backends
// that can preflight-count tokens (Anthropic's count_tokens endpoint, OpenAI's
// Responses input_tokens endpoint) implement this; EstimateTokens is the
// fallback when no such endpoint is available.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(ctx context.Context, text string) (int, error)

	// CountMessagesTokens returns the token count for a conversation,
	// accounting for role/formatting overhead.
	CountMessagesTokens(ctx context.Context, msgs []rlm.Message) (int, error)
}

// EstimateTokens provides a heuristic fallback (chars/4) when accurate
// tokenization is unavailable.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}

// EstimateTokensForMessages sums EstimateTokens over a conversation's content.
func EstimateTokensForMessages(msgs []rlm.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}
