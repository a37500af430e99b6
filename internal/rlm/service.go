package rlm

import "context"

// Usage carries token accounting for a single LLM call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the component-wise sum of two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ToolSchema describes a callable tool a CompletionRequest may advertise.
// The core driver never populates this; it exists so a CompletionService
// implementation can be reused outside the RLM loop (e.g. by Chat).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is the input to one CompletionService call.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolSchema
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the output of one CompletionService call.
type CompletionResponse struct {
	Message      Message
	Usage        Usage
	FinishReason string
}

// CompletionService is the single external dependency of the CORE driver:
// a one-shot chat completion operation. Any backend compatible with the
// widespread chat-completions wire format (system/user/assistant roles, an
// array of messages, a response with choices[0].message.content and
// prompt/completion/total token usage) can implement this directly.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
