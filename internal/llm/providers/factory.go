// Package providers selects and constructs the configured
// rlm.CompletionService backend.
package providers

import (
	"fmt"
	"net/http"

	"manifold/internal/config"
	"manifold/internal/llm/anthropic"
	"manifold/internal/llm/google"
	openaillm "manifold/internal/llm/openai"
	"manifold/internal/rlm"
)

// Build constructs an rlm.CompletionService based on cfg.Provider.
//   - anthropic: Anthropic Messages API
//   - openai: OpenAI Chat Completions API (also serves OpenAI-compatible
//     self-hosted endpoints when cfg.OpenAI.BaseURL is set)
//   - google: Gemini Generative Language API
func Build(cfg config.Config, httpClient *http.Client) (rlm.CompletionService, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.New(cfg.Anthropic, httpClient), nil
	case "openai":
		return openaillm.New(cfg.OpenAI, httpClient), nil
	case "google":
		return google.New(cfg.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
