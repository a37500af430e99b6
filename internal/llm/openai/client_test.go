package openai

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

func TestClientCompleteReturnsFirstChoice(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl_1", "object": "chat.completion", "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL},
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
	assert.Equal(t, "stop", resp.FinishReason)

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestClientCompleteNoChoicesReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl_1", "choices": [], "usage": {}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL},
	}, srv.Client())

	_, err := client.Complete(context.Background(), rlm.CompletionRequest{
		Messages: []rlm.Message{{Role: rlm.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, errNoChoices)
}

func TestClientCompletePropagatesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom"}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL},
	}, srv.Client())

	_, err := client.Complete(context.Background(), rlm.CompletionRequest{
		Messages: []rlm.Message{{Role: rlm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
}
