package rlm

import (
	"context"
	"time"
)

// EngineConfig configures an Engine. All fields are optional; zero values
// fall back to the defaults named in spec.md §4.6.
type EngineConfig struct {
	// MaxIterations bounds the RecursiveLoop; default 30.
	MaxIterations int
	// SystemPrompt overrides the built-in protocol-explanation prompt.
	SystemPrompt string
	// Verbose enables additional structured logging around each iteration.
	Verbose bool
	// SandboxTimeout bounds each Sandbox.Execute call; default 300s.
	SandboxTimeout time.Duration
	// ReportCharBudget bounds the formatted ExecutionReport size; default 20000.
	ReportCharBudget int
	// SplitText optionally wires the opt-in splitText sandbox helper
	// (SPEC_FULL.md §4.10). Nil disables it.
	SplitText SplitTextFunc
}

// Engine is the entry point of the public API: `completion` and `chat`.
// One Engine may serve many Completion calls; each call constructs its own
// Sandbox and driver so completions never share mutable state.
type Engine struct {
	service CompletionService
	cfg     EngineConfig
	prompts *PromptBuilder
}

// New constructs an Engine bound to service, the sole external
// CompletionService dependency of the CORE.
func New(service CompletionService, cfg EngineConfig) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 30
	}
	if cfg.SandboxTimeout <= 0 {
		cfg.SandboxTimeout = 300 * time.Second
	}
	if cfg.ReportCharBudget <= 0 {
		cfg.ReportCharBudget = defaultReportCharBudget
	}
	return &Engine{
		service: service,
		cfg:     cfg,
		prompts: NewPromptBuilder(cfg.SystemPrompt, cfg.ReportCharBudget),
	}
}

// Completion runs the recursive loop for prompt and returns once a final
// answer is reached or the iteration limit is exhausted. See spec.md §4.4.
func (e *Engine) Completion(ctx context.Context, prompt string, opts Options) (RLMResult, error) {
	schemaDesc := opts.SchemaDescription

	sandbox := NewSandbox(e.service, e.cfg.SystemPrompt, opts.Context, e.cfg.SandboxTimeout)
	if e.cfg.SplitText != nil {
		sandbox.EnableSplitText(e.cfg.SplitText)
	}

	desc := describeContext(opts.Context)
	history := NewMessageHistory(e.prompts.SystemMessage(), e.prompts.MetadataMessage(desc, schemaDesc))

	d := newDriver(e.service, sandbox, e.prompts, e.cfg.MaxIterations, opts.OnEvent)
	return d.run(ctx, prompt, history)
}

// Chat is a thin passthrough to the CompletionService, bypassing the
// iteration loop entirely.
func (e *Engine) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := e.service.Complete(ctx, CompletionRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
