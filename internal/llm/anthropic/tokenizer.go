package anthropic

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

// MessagesTokenizer implements chunk.Tokenizer using the Anthropic Messages
// API /v1/messages/count_tokens endpoint for accurate preflight token
// counting.
type MessagesTokenizer struct {
	sdk      anthropic.Client
	model    string
	cacheCfg config.AnthropicPromptCacheConfig
	cache    *chunk.TokenCache
}

// NewMessagesTokenizer creates a tokenizer that uses the Messages API
// count_tokens endpoint. model specifies which model to count tokens for.
func NewMessagesTokenizer(sdk anthropic.Client, model string, cacheCfg config.AnthropicPromptCacheConfig, cache *chunk.TokenCache) *MessagesTokenizer {
	return &MessagesTokenizer{sdk: sdk, model: model, cacheCfg: cacheCfg, cache: cache}
}

// CountTokens counts tokens for a single text string.
func (t *MessagesTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	if t.cache != nil {
		if count, ok := t.cache.Get(text); ok {
			return count, nil
		}
	}

	count, err := t.CountMessagesTokens(ctx, []rlm.Message{{Role: rlm.RoleUser, Content: text}})
	if err != nil {
		return 0, err
	}

	if t.cache != nil {
		t.cache.Set(text, count)
	}
	return count, nil
}

// CountMessagesTokens counts tokens for a conversation using the
// /v1/messages/count_tokens endpoint.
func (t *MessagesTokenizer) CountMessagesTokens(ctx context.Context, msgs []rlm.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	log := observability.LoggerWithTrace(ctx)

	system, apiMsgs := adaptMessages(msgs, t.cacheCfg)
	params := anthropic.MessageCountTokensParams{
		Messages: apiMsgs,
		Model:    anthropic.Model(t.model),
	}
	if len(system) > 0 {
		var sb strings.Builder
		for i, block := range system {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(block.Text)
		}
		params.System = anthropic.MessageCountTokensParamsSystemUnion{OfString: anthropic.String(sb.String())}
	}

	result, err := t.sdk.Messages.CountTokens(ctx, params)
	if err != nil {
		log.Warn().Err(err).Str("model", t.model).Int("messages", len(msgs)).Msg("anthropic_count_tokens_error")
		return 0, err
	}

	log.Debug().Int64("input_tokens", result.InputTokens).Int("message_count", len(msgs)).Msg("anthropic_count_tokens_ok")
	return int(result.InputTokens), nil
}

var _ chunk.Tokenizer = (*MessagesTokenizer)(nil)
