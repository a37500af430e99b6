package rlm

import (
	"context"
	"time"
)

// Options configures one completion call.
type Options struct {
	Context       ContextValue
	SchemaDescription string
	OnEvent       func(TraceEvent)
}

// UsageSummary is the aggregated accounting returned in an RLMResult.
type UsageSummary struct {
	TotalCalls      int
	RootCalls       int
	SubCalls        int
	TokenUsage      Usage
	ExecutionTimeMs int64
}

// RLMResult is the public return value of Engine.Completion.
type RLMResult struct {
	Answer     FinalAnswer
	Usage      UsageSummary
	Iterations int
	Trace      []TraceEvent
}

// driver runs one completion's iteration loop. It is constructed fresh per
// call by Engine.Completion and discarded on exit; it holds no state beyond
// that one call.
type driver struct {
	service       CompletionService
	parser        *ResponseParser
	prompts       *PromptBuilder
	sandbox       *Sandbox
	maxIterations int

	tracer *tracer

	rootUsage Usage
	subUsage  Usage
	subCalls  int
	start     time.Time
}

func newDriver(service CompletionService, sandbox *Sandbox, prompts *PromptBuilder, maxIterations int, onEvent func(TraceEvent)) *driver {
	return &driver{
		service:       service,
		parser:        NewResponseParser(),
		prompts:       prompts,
		sandbox:       sandbox,
		maxIterations: maxIterations,
		tracer:        newTracer(onEvent),
		start:         time.Now(),
	}
}

// run executes the state machine described in spec.md §4.4.
func (d *driver) run(ctx context.Context, prompt string, history *MessageHistory) (RLMResult, error) {
	for i := 0; i < d.maxIterations; i++ {
		result, done, err := d.runIteration(ctx, prompt, history, i)
		if err != nil {
			return RLMResult{}, err
		}
		if done {
			return result, nil
		}
	}

	// Iteration limit reached: one extra "final-request" turn.
	return d.runFinalRequest(ctx, history, d.maxIterations)
}

// runIteration performs one full iteration: build turn, call the root LLM,
// parse, execute every CodeBlock, update history, and check for a final
// answer after each execution.
func (d *driver) runIteration(ctx context.Context, prompt string, history *MessageHistory, i int) (RLMResult, bool, error) {
	iterationNum := i + 1
	d.tracer.emit(ctx, EventIterationStart, iterationNum, nil)

	working := history.Clone()
	userTurn := d.prompts.IterationUserTurn(prompt, i)
	working.Append(userTurn)

	resp, err := d.callRoot(ctx, working, iterationNum)
	if err != nil {
		return RLMResult{}, false, err
	}

	history.Append(userTurn)

	blocks := d.parser.ParseCodeBlocks(resp.Message.Content)
	reports, finalAnswer, finalReached := d.executeBlocks(ctx, blocks, iterationNum)

	history.Append(d.prompts.IterationHistoryMessages(resp.Message.Content, blocks, reports)...)

	if !finalReached {
		if legacy, ok := d.parser.ParseLegacyFinal(resp.Message.Content, d.lastLocals(reports)); ok {
			if legacy.Err == "" {
				finalAnswer = FinalAnswer{Message: legacy.Message}
				finalReached = true
			}
		}
	}

	if finalReached {
		d.tracer.emit(ctx, EventFinalAnswer, iterationNum, map[string]any{"answer": finalAnswer.Message})
		return d.buildResult(finalAnswer, iterationNum), true, nil
	}

	return RLMResult{}, false, nil
}

func (d *driver) lastLocals(reports []ExecutionReport) map[string]any {
	if len(reports) == 0 {
		return nil
	}
	return reports[len(reports)-1].Locals
}

// callRoot issues one CompletionService call on behalf of the root LLM.
func (d *driver) callRoot(ctx context.Context, working *MessageHistory, iteration int) (CompletionResponse, error) {
	msgs := working.Messages()
	truncatedPrompt := ""
	if len(msgs) > 0 {
		truncatedPrompt = truncate(msgs[len(msgs)-1].Content, 2000)
	}
	d.tracer.emit(ctx, EventLLMQueryStart, iteration, map[string]any{"prompt": truncatedPrompt})

	resp, err := d.service.Complete(ctx, CompletionRequest{Messages: msgs})
	if err != nil {
		d.tracer.emit(ctx, EventLLMQueryEnd, iteration, map[string]any{"error": err.Error()})
		return CompletionResponse{}, &LLMTransportError{Iteration: iteration, Err: err}
	}

	d.rootUsage = d.rootUsage.Add(resp.Usage)
	d.tracer.emit(ctx, EventLLMQueryEnd, iteration, map[string]any{"response": resp.Message.Content})
	return resp, nil
}

// executeBlocks runs each CodeBlock in order, stopping (without running the
// rest) as soon as a final answer is set.
func (d *driver) executeBlocks(ctx context.Context, blocks []CodeBlock, iteration int) ([]ExecutionReport, FinalAnswer, bool) {
	reports := make([]ExecutionReport, 0, len(blocks))
	for _, block := range blocks {
		d.tracer.emit(ctx, EventCodeExecutionStart, iteration, map[string]any{"code": block.Code})

		report := d.sandbox.Execute(ctx, block.Code, ExecuteOptions{})
		reports = append(reports, report)

		d.subUsage = d.subUsage.Add(sumUsage(report.SubCalls))
		d.subCalls += len(report.SubCalls)

		payload := map[string]any{"stdout": report.Stdout, "stderr": report.Stderr}
		if report.Error != "" {
			payload["error"] = report.Error
		}
		d.tracer.emit(ctx, EventCodeExecutionEnd, iteration, payload)

		if answer, ok := d.sandbox.GetFinalAnswer(); ok {
			return reports, answer, true
		}
	}
	return reports, FinalAnswer{}, false
}

func sumUsage(calls []SubLLMCallRecord) Usage {
	var total Usage
	for _, c := range calls {
		total = total.Add(c.Usage)
	}
	return total
}

// runFinalRequest issues the extra "final-request" turn permitted when the
// iteration limit is hit (spec.md §4.4 step 3).
func (d *driver) runFinalRequest(ctx context.Context, history *MessageHistory, maxIterations int) (RLMResult, error) {
	iterationNum := maxIterations + 1
	d.tracer.emit(ctx, EventIterationStart, iterationNum, nil)

	finalTurn := d.prompts.FinalRequestTurn()
	working := history.Clone()
	working.Append(finalTurn)

	resp, err := d.callRoot(ctx, working, iterationNum)
	if err != nil {
		return RLMResult{}, err
	}
	history.Append(finalTurn)

	blocks := d.parser.ParseCodeBlocks(resp.Message.Content)
	reports, finalAnswer, finalReached := d.executeBlocks(ctx, blocks, iterationNum)
	history.Append(d.prompts.IterationHistoryMessages(resp.Message.Content, blocks, reports)...)

	if !finalReached {
		if legacy, ok := d.parser.ParseLegacyFinal(resp.Message.Content, d.lastLocals(reports)); ok && legacy.Err == "" {
			finalAnswer = FinalAnswer{Message: legacy.Message}
			finalReached = true
		}
	}

	if finalReached {
		d.tracer.emit(ctx, EventFinalAnswer, iterationNum, map[string]any{"answer": finalAnswer.Message})
		return d.buildResult(finalAnswer, iterationNum), nil
	}

	// Raw-text fallback: the iteration limit was reached and no final
	// answer was ever set.
	fallback := FinalAnswer{Message: resp.Message.Content}
	return d.buildResult(fallback, iterationNum), nil
}

func (d *driver) buildResult(answer FinalAnswer, iterations int) RLMResult {
	total := d.rootUsage.Add(d.subUsage)
	return RLMResult{
		Answer: answer,
		Usage: UsageSummary{
			TotalCalls:      iterations + d.subCalls,
			RootCalls:       iterations,
			SubCalls:        d.subCalls,
			TokenUsage:      total,
			ExecutionTimeMs: time.Since(d.start).Milliseconds(),
		},
		Iterations: iterations,
		Trace:      d.tracer.trace(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
