package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/rlm"
)

func TestResponsesTokenizer_BuildInputItems_SeparatesSystemAsInstructions(t *testing.T) {
	tokenizer := &ResponsesTokenizer{}
	items, instructions := tokenizer.buildInputItems([]rlm.Message{
		{Role: rlm.RoleSystem, Content: "be terse"},
		{Role: rlm.RoleUser, Content: "hi"},
		{Role: rlm.RoleAssistant, Content: "hello"},
	})

	assert.Equal(t, "be terse", instructions)
	require.Len(t, items, 2)
}

func TestResponsesTokenizer_CountMessagesTokens(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses/input_tokens" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_tokens": 77}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL},
	}, srv.Client())

	tokenizer := client.Tokenizer(nil)

	count, err := tokenizer.CountMessagesTokens(context.Background(), []rlm.Message{
		{Role: rlm.RoleSystem, Content: "be terse"},
		{Role: rlm.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 77, count)
	assert.Equal(t, "be terse", gotBody["instructions"])
}

func TestResponsesTokenizer_EmptyInput(t *testing.T) {
	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o"},
	}, nil)
	tokenizer := client.Tokenizer(nil)

	count, err := tokenizer.CountTokens(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestResponsesTokenizer_WithCache(t *testing.T) {
	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_tokens": 12}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL},
	}, srv.Client())

	cache := chunk.NewTokenCache(chunk.TokenCacheConfig{MaxSize: 100})
	tokenizer := client.Tokenizer(cache)

	ctx := context.Background()
	text := "This is a test message"

	count1, err := tokenizer.CountTokens(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 12, count1)
	assert.Equal(t, 1, callCount)

	count2, err := tokenizer.CountTokens(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 12, count2)
	assert.Equal(t, 1, callCount, "expected cache hit to avoid a second API call")
}

func TestClient_SupportsTokenization(t *testing.T) {
	hosted := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "test-key", Model: "gpt-4o"},
	}, nil)
	assert.True(t, hosted.SupportsTokenization())

	local := New(config.OpenAIConfig{
		ProviderConfig: config.ProviderConfig{APIKey: "x", Model: "llama", BaseURL: "http://localhost:8080/v1"},
	}, nil)
	assert.False(t, local.SupportsTokenization())
}
