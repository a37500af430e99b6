package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/config"
	"manifold/internal/rlm"
)

func TestClientCompleteSendsSystemSeparately(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-sonnet",
			"content": [{"type": "text", "text": "hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.AnthropicConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "claude-3-sonnet", BaseURL: srv.URL},
	}, srv.Client())

	resp, err := client.Complete(context.Background(), rlm.CompletionRequest{
		Messages: []rlm.Message{
			{Role: rlm.RoleSystem, Content: "be terse"},
			{Role: rlm.RoleUser, Content: "hi"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Message.Content)
	assert.Equal(t, rlm.RoleAssistant, resp.Message.Role)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)

	sysField, ok := gotBody["system"]
	require.True(t, ok, "expected system field in request body")
	sysList, ok := sysField.([]any)
	require.True(t, ok)
	require.Len(t, sysList, 1)

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestClientCompletePropagatesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"type": "server_error", "message": "boom"}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.AnthropicConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "claude-3-sonnet", BaseURL: srv.URL},
	}, srv.Client())

	_, err := client.Complete(context.Background(), rlm.CompletionRequest{
		Messages: []rlm.Message{{Role: rlm.RoleUser, Content: "hi"}},
	})

	require.Error(t, err)
}
