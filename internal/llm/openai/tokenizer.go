package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"manifold/internal/chunk"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

// ResponsesTokenizer implements chunk.Tokenizer using the OpenAI Responses
// API /v1/responses/input_tokens preflight endpoint for accurate token
// counting.
type ResponsesTokenizer struct {
	client *Client
	model  string
	cache  *chunk.TokenCache
}

// NewResponsesTokenizer creates a tokenizer that uses the Responses API
// input_tokens endpoint. model specifies which model to count tokens for,
// since different models may tokenize differently.
func NewResponsesTokenizer(client *Client, model string, cache *chunk.TokenCache) *ResponsesTokenizer {
	return &ResponsesTokenizer{client: client, model: model, cache: cache}
}

type inputTokensRequest struct {
	Model        string `json:"model"`
	Input        []any  `json:"input"`
	Instructions string `json:"instructions,omitempty"`
}

type inputTokensResponse struct {
	TotalTokens int `json:"total_tokens"`
}

// CountTokens counts tokens for a single text string.
func (t *ResponsesTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
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
// /v1/responses/input_tokens endpoint.
func (t *ResponsesTokenizer) CountMessagesTokens(ctx context.Context, msgs []rlm.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	log := observability.LoggerWithTrace(ctx)

	input, instructions := t.buildInputItems(msgs)
	req := inputTokensRequest{Model: t.model, Input: input}
	if strings.TrimSpace(instructions) != "" {
		req.Instructions = instructions
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal input_tokens request: %w", err)
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(t.client.baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	url := baseURL + "/responses/input_tokens"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create input_tokens request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.client.apiKey)

	resp, err := t.client.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("input_tokens request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read input_tokens response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("input_tokens_api_error")
		return 0, fmt.Errorf("input_tokens returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result inputTokensResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("unmarshal input_tokens response: %w", err)
	}

	log.Debug().Int("total_tokens", result.TotalTokens).Int("message_count", len(msgs)).Msg("input_tokens_counted")
	return result.TotalTokens, nil
}

// buildInputItems converts rlm.Message history to Responses API input items.
func (t *ResponsesTokenizer) buildInputItems(msgs []rlm.Message) ([]any, string) {
	items := make([]any, 0, len(msgs))
	var instructions string

	for _, m := range msgs {
		switch m.Role {
		case rlm.RoleSystem:
			instructions = m.Content
		case rlm.RoleUser:
			items = append(items, map[string]any{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{"type": "input_text", "text": m.Content},
				},
			})
		case rlm.RoleAssistant:
			items = append(items, map[string]any{
				"type":   "message",
				"role":   "assistant",
				"status": "completed",
				"content": []map[string]any{
					{"type": "output_text", "text": m.Content},
				},
			})
		}
	}

	return items, instructions
}

var _ chunk.Tokenizer = (*ResponsesTokenizer)(nil)
