// Package openai adapts the OpenAI Chat Completions API to
// rlm.CompletionService.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

var errNoChoices = errors.New("openai provider: completion returned no choices")

// Client adapts github.com/openai/openai-go/v2 to rlm.CompletionService.
type Client struct {
	sdk        sdk.Client
	model      string
	extra      map[string]any
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Client from cfg. httpClient may be nil to use
// http.DefaultClient. The same constructor serves OpenAI-compatible
// self-hosted endpoints (e.g. llama.cpp/mlx_lm servers) via cfg.BaseURL.
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, option.WithHTTPClient(httpClient))

	return &Client{
		sdk:        sdk.NewClient(opts...),
		model:      strings.TrimSpace(cfg.Model),
		extra:      cfg.ExtraParams,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Tokenizer returns a chunk.Tokenizer backed by the Responses API's
// input_tokens preflight endpoint for accurate token counting.
func (c *Client) Tokenizer(cache *chunk.TokenCache) chunk.Tokenizer {
	return NewResponsesTokenizer(c, c.model, cache)
}

// SupportsTokenization reports whether this client can preflight-count
// tokens: only against the hosted api.openai.com endpoint, since the
// input_tokens endpoint is not part of the OpenAI-compatible subset most
// self-hosted servers implement.
func (c *Client) SupportsTokenization() bool {
	base := strings.TrimSuffix(strings.TrimSpace(c.baseURL), "/")
	return base == "" || base == "https://api.openai.com/v1"
}

// Complete implements rlm.CompletionService.
func (c *Client) Complete(ctx context.Context, req rlm.CompletionRequest) (rlm.CompletionResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: adaptMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if len(c.extra) > 0 {
		params.SetExtraFields(c.extra)
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("openai_complete_error")
		return rlm.CompletionResponse{}, err
	}
	if len(comp.Choices) == 0 {
		return rlm.CompletionResponse{}, errNoChoices
	}

	choice := comp.Choices[0]
	promptTokens := int(comp.Usage.PromptTokens)
	completionTokens := int(comp.Usage.CompletionTokens)

	log.Debug().
		Str("model", c.model).
		Dur("duration", dur).
		Int("prompt_tokens", promptTokens).
		Int("completion_tokens", completionTokens).
		Msg("openai_complete_ok")

	return rlm.CompletionResponse{
		Message:      rlm.Message{Role: rlm.RoleAssistant, Content: choice.Message.Content},
		Usage:        rlm.Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens, TotalTokens: promptTokens + completionTokens},
		FinishReason: string(choice.FinishReason),
	}, nil
}

// adaptMessages converts the portable rlm.Message history into the OpenAI
// SDK's union message params.
func adaptMessages(msgs []rlm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case rlm.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case rlm.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case rlm.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		}
	}
	return out
}

var _ rlm.CompletionService = (*Client)(nil)
