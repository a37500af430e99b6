package bench

import (
	"context"
	"strings"
	"time"

	"manifold/internal/rlm"
)

// RunResult records the outcome of a single rlm.Completion call over a
// Fixture.
type RunResult struct {
	Fixture    Fixture
	Passed     bool
	Iterations int
	SubCalls   int
	TokenUsage rlm.Usage
	Duration   time.Duration
	Err        error
}

// Runner drives repeated rlm.Completion calls over generated fixtures and
// records pass/fail plus accounting for each run.
type Runner struct {
	engine  *rlm.Engine
	onEvent func(rlm.TraceEvent)
}

// NewRunner constructs a Runner bound to engine.
func NewRunner(engine *rlm.Engine) *Runner {
	return &Runner{engine: engine}
}

// SetOnEvent installs a trace-event sink forwarded to every subsequent
// rlm.Completion call (e.g. a Kafka-backed publisher for out-of-process
// observers). A nil sink disables forwarding.
func (r *Runner) SetOnEvent(onEvent func(rlm.TraceEvent)) {
	r.onEvent = onEvent
}

// Run executes one completion over fixture and reports whether the final
// answer's message contains the needle value.
func (r *Runner) Run(ctx context.Context, fixture Fixture) RunResult {
	start := time.Now()
	result, err := r.engine.Completion(ctx, fixture.Prompt, rlm.Options{Context: fixture.Context, OnEvent: r.onEvent})
	dur := time.Since(start)

	if err != nil {
		return RunResult{Fixture: fixture, Duration: dur, Err: err}
	}

	passed := strings.Contains(result.Answer.Message, fixture.NeedleValue)
	return RunResult{
		Fixture:    fixture,
		Passed:     passed,
		Iterations: result.Iterations,
		SubCalls:   result.Usage.SubCalls,
		TokenUsage: result.Usage.TokenUsage,
		Duration:   dur,
	}
}

// RunN executes n repetitions of fixture, stopping early if ctx is
// cancelled.
func (r *Runner) RunN(ctx context.Context, fixture Fixture, n int) []RunResult {
	results := make([]RunResult, 0, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, fixture))
	}
	return results
}
