// Package google adapts the Gemini Generative Language API to
// rlm.CompletionService.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

const defaultModel = "gemini-1.5-flash"

// Client adapts google.golang.org/genai to rlm.CompletionService.
type Client struct {
	sdk   *genai.Client
	model string
}

// New constructs a Client from cfg. httpClient may be nil to use
// http.DefaultClient.
func New(cfg config.GoogleConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}

	return &Client{sdk: sdk, model: model}, nil
}

// Tokenizer returns nil: the Gemini client relies on chunk.EstimateTokens,
// since the countTokens endpoint requires a per-request model round trip
// the driver's budget tracking does not need for Gemini's generous context
// windows.
func (c *Client) Tokenizer(*chunk.TokenCache) chunk.Tokenizer { return nil }

// SupportsTokenization always reports false; see Tokenizer.
func (c *Client) SupportsTokenization() bool { return false }

// Complete implements rlm.CompletionService.
func (c *Client) Complete(ctx context.Context, req rlm.CompletionRequest) (rlm.CompletionResponse, error) {
	model := c.model

	contents, systemInstruction := toContents(req.Messages)

	genCfg := &genai.GenerateContentConfig{}
	if systemInstruction != nil {
		genCfg.SystemInstruction = systemInstruction
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		genCfg.Temperature = &temp
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, model, contents, genCfg)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("google_complete_error")
		return rlm.CompletionResponse{}, err
	}

	content, finishReason, err := textFromResponse(resp)
	if err != nil {
		return rlm.CompletionResponse{}, err
	}

	// Gemini's response carries no portable prompt/completion token usage in
	// this client path; the driver falls back to chunk.EstimateTokens for
	// budget accounting on this provider.
	estimated := chunk.EstimateTokensForMessages(req.Messages)
	completionTokens := chunk.EstimateTokens(content)

	log.Debug().
		Str("model", model).
		Dur("duration", dur).
		Int("estimated_prompt_tokens", estimated).
		Int("estimated_completion_tokens", completionTokens).
		Msg("google_complete_ok")

	return rlm.CompletionResponse{
		Message:      rlm.Message{Role: rlm.RoleAssistant, Content: content},
		Usage:        rlm.Usage{PromptTokens: estimated, CompletionTokens: completionTokens, TotalTokens: estimated + completionTokens},
		FinishReason: finishReason,
	}, nil
}

// toContents converts the portable rlm.Message history into Gemini
// Content values, pulling any system message out as a separate system
// instruction since Gemini has no "system" role in its content list.
func toContents(msgs []rlm.Message) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case rlm.RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case rlm.RoleUser:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		case rlm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	return contents, systemInstruction
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", "", fmt.Errorf("google provider: completion returned no candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}

	return sb.String(), string(cand.FinishReason), nil
}

var _ rlm.CompletionService = (*Client)(nil)
