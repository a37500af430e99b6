// Package anthropic adapts the Anthropic Messages API to rlm.CompletionService.
package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

const defaultMaxTokens int64 = 4096

// Client adapts github.com/anthropics/anthropic-sdk-go to rlm.CompletionService.
type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	cacheCfg  config.AnthropicPromptCacheConfig
	extra     map[string]any
}

// New constructs a Client from cfg. httpClient may be nil to use
// http.DefaultClient.
func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	maxTokens := defaultMaxTokens
	if cfg.MaxTokens > 0 {
		maxTokens = int64(cfg.MaxTokens)
	}

	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		cacheCfg:  cfg.PromptCache,
		extra:     cfg.ExtraParams,
	}
}

// Complete implements rlm.CompletionService.
func (c *Client) Complete(ctx context.Context, req rlm.CompletionRequest) (rlm.CompletionResponse, error) {
	system, messages := adaptMessages(req.Messages, c.cacheCfg)

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(c.extra) > 0 {
		params.SetExtraFields(c.extra)
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("anthropic_complete_error")
		return rlm.CompletionResponse{}, err
	}

	content := textFromContent(resp.Content)
	promptTokens := usagePromptTokens(resp.Usage.CacheCreationInputTokens, resp.Usage.CacheReadInputTokens, resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)

	log.Debug().
		Str("model", c.model).
		Dur("duration", dur).
		Int("prompt_tokens", promptTokens).
		Int("completion_tokens", completionTokens).
		Msg("anthropic_complete_ok")

	return rlm.CompletionResponse{
		Message:      rlm.Message{Role: rlm.RoleAssistant, Content: content},
		Usage:        rlm.Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens, TotalTokens: promptTokens + completionTokens},
		FinishReason: string(resp.StopReason),
	}, nil
}

// adaptMessages splits the portable rlm.Message history into Anthropic's
// separate system-prompt blocks and user/assistant message list, applying
// prompt-cache breakpoints per cacheCfg.
func adaptMessages(msgs []rlm.Message, cacheCfg config.AnthropicPromptCacheConfig) (system []anthropic.TextBlockParam, out []anthropic.MessageParam) {
	cacheSystem := cacheCfg.Enabled && cacheCfg.CacheSystem
	cacheMessages := cacheCfg.Enabled && cacheCfg.CacheMessages
	cacheControl := anthropic.CacheControlEphemeralParam{TTL: anthropic.CacheControlEphemeralTTLTTL5m}

	newTextBlock := func(text string) anthropic.ContentBlockParamUnion {
		if !cacheMessages {
			return anthropic.NewTextBlock(text)
		}
		return anthropic.ContentBlockParamUnion{OfText: &anthropic.TextBlockParam{Text: text, CacheControl: cacheControl}}
	}

	for _, m := range msgs {
		switch m.Role {
		case rlm.RoleSystem:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			block := anthropic.TextBlockParam{Text: m.Content}
			if cacheSystem {
				block.CacheControl = cacheControl
			}
			system = append(system, block)
		case rlm.RoleUser:
			out = append(out, anthropic.NewUserMessage(newTextBlock(m.Content)))
		case rlm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(newTextBlock(m.Content)))
		}
	}
	return system, out
}

func textFromContent(blocks []anthropic.ContentBlockUnion) string {
	var sb strings.Builder
	for _, block := range blocks {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

func usagePromptTokens(cacheCreation, cacheRead, input int64) int {
	return int(cacheCreation + cacheRead + input)
}

// Tokenizer returns a chunk.Tokenizer backed by the Messages API's
// count_tokens endpoint for accurate preflight token counting.
func (c *Client) Tokenizer(cache *chunk.TokenCache) chunk.Tokenizer {
	return NewMessagesTokenizer(c.sdk, c.model, c.cacheCfg, cache)
}

// SupportsTokenization reports that Anthropic always exposes count_tokens.
func (c *Client) SupportsTokenization() bool {
	return true
}

var _ rlm.CompletionService = (*Client)(nil)
