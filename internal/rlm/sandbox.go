package rlm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// SubLLMCallRecord captures one llm_query/llm_query_batched invocation made
// from inside an executing program.
type SubLLMCallRecord struct {
	Prompt         string
	Response       string
	Usage          Usage
	DurationMs     int64
	ModelOverride  string
}

// ExecutionReport is the Sandbox's structured output for one executed
// CodeBlock.
type ExecutionReport struct {
	Stdout          string
	Stderr          string
	Locals          map[string]any
	ExecutionTimeMs int64
	SubCalls        []SubLLMCallRecord
	Error           string
}

// ExecuteOptions tunes a single Sandbox.Execute call.
type ExecuteOptions struct {
	// Timeout overrides the Sandbox's configured wall-clock timeout for this
	// execution only. Zero means "use the Sandbox default".
	Timeout time.Duration
}

// Sandbox hosts LLM-authored programs in an embedded goja ECMAScript
// runtime. One instance is created per completion call. `context` and the
// final answer persist across Execute calls on the same instance; stdout,
// stderr, and the sub-call log are freshly allocated per call.
//
// goja exposes no filesystem, network, process, or dynamic-module-loading
// globals unless explicitly registered, so an unmodified goja.Runtime is
// already a closed sandbox; only the bindings in sandbox_builtins.go are
// added on top of the interpreter's built-in ECMAScript value types
// (Math, JSON, Date, RegExp, String, Array, Object, ...).
type Sandbox struct {
	mu sync.Mutex

	vm      *goja.Runtime
	service CompletionService
	system  string
	timeout time.Duration

	baselineGlobals map[string]struct{}

	ctx         context.Context
	stdout      strings.Builder
	stderr      strings.Builder
	subCalls    []SubLLMCallRecord
	finalAnswer *FinalAnswer

	splitters SplitTextFunc
}

// FinalAnswer is the structured value set by the sandbox's final-answer
// binding.
type FinalAnswer struct {
	Message string
	Data    any
}

// SplitTextFunc is the optional chunking helper wired in as `splitText`
// when enabled by configuration (see internal/chunk). It is never required
// by the CORE and is nil by default.
type SplitTextFunc func(text, strategy string, opts map[string]any) []string

// NewSandbox constructs a Sandbox bound to service for sub-LLM calls and
// system for the shared system prompt used in those one-shot sub-calls
// (empty means none). value is the ContextValue exposed as `context`.
func NewSandbox(service CompletionService, system string, value ContextValue, timeout time.Duration) *Sandbox {
	s := &Sandbox{
		vm:      goja.New(),
		service: service,
		system:  system,
		timeout: timeout,
	}
	s.registerBuiltins()
	s.loadContextLocked(value)
	s.snapshotBaseline()
	return s
}

// EnableSplitText wires the optional splitText sandbox helper described in
// SPEC_FULL.md §4.10. Disabled (nil) by default.
func (s *Sandbox) EnableSplitText(fn SplitTextFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splitters = fn
	s.registerSplitText()
}

// LoadContext rebinds the `context` global to a new value.
func (s *Sandbox) LoadContext(value ContextValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadContextLocked(value)
}

func (s *Sandbox) loadContextLocked(value ContextValue) {
	_ = s.vm.Set("context", value)
}

func (s *Sandbox) snapshotBaseline() {
	s.baselineGlobals = make(map[string]struct{})
	for _, k := range s.vm.GlobalObject().Keys() {
		s.baselineGlobals[k] = struct{}{}
	}
}

// Execute runs code as a fresh top-level program. stdout, stderr, and the
// sub-call log reflect only this invocation; `context`, locals, and the
// final answer persist across calls on the same Sandbox.
func (s *Sandbox) Execute(ctx context.Context, code string, opts ExecuteOptions) ExecutionReport {
	s.mu.Lock()
	s.stdout.Reset()
	s.stderr.Reset()
	s.subCalls = nil
	s.ctx = ctx
	s.mu.Unlock()

	timeout := s.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	errStr, faulted := s.runWithTimeout(code, timeout)
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if faulted {
		s.stderr.WriteString(errStr)
		if !strings.HasSuffix(errStr, "\n") {
			s.stderr.WriteString("\n")
		}
		s.stderr.WriteString("hint: check the variable/function names referenced above; re-run with a corrected program.\n")
	}

	locals := s.captureLocalsLocked()

	report := ExecutionReport{
		Stdout:          s.stdout.String(),
		Stderr:          s.stderr.String(),
		Locals:          locals,
		ExecutionTimeMs: elapsed.Milliseconds(),
		SubCalls:        append([]SubLLMCallRecord(nil), s.subCalls...),
	}
	if report.ExecutionTimeMs <= 0 {
		report.ExecutionTimeMs = 1
	}
	if faulted {
		report.Error = errStr
	}
	return report
}

// runWithTimeout runs code on the Runtime, enforcing the wall-clock budget
// via goja's cooperative interrupt mechanism. Returns a formatted error
// string and true if the program faulted or timed out.
func (s *Sandbox) runWithTimeout(code string, timeout time.Duration) (string, bool) {
	done := make(chan struct {
		err string
		ok  bool
	}, 1)

	timer := time.AfterFunc(timeout, func() {
		s.vm.Interrupt(&SandboxTimeout{Timeout: timeout.String()})
	})
	defer timer.Stop()

	go func() {
		errStr, faulted := s.runOnce(code)
		done <- struct {
			err string
			ok  bool
		}{errStr, faulted}
	}()

	result := <-done
	return result.err, result.ok
}

func (s *Sandbox) runOnce(code string) (errStr string, faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			errStr = formatFault(r)
			faulted = true
		}
	}()

	wrapped := "(function(){\n" + code + "\n})();"
	_, err := s.vm.RunString(wrapped)
	if err != nil {
		if ie, ok := err.(*goja.InterruptedError); ok {
			return formatFault(ie.Value()), true
		}
		return formatFault(err), true
	}
	return "", false
}

func formatFault(v any) string {
	switch e := v.(type) {
	case *SandboxTimeout:
		return e.Error()
	case *goja.Exception:
		return fmt.Sprintf("%s", e.Value().Export())
	case error:
		return e.Error()
	default:
		return fmt.Sprintf("%v", e)
	}
}

// captureLocalsLocked scans the global object for names added since the
// baseline snapshot (i.e. not injected bindings, not interpreter builtins)
// whose names do not begin with an underscore. Values that cannot be safely
// exported are skipped silently.
func (s *Sandbox) captureLocalsLocked() map[string]any {
	out := make(map[string]any)
	for _, key := range s.vm.GlobalObject().Keys() {
		if _, isBaseline := s.baselineGlobals[key]; isBaseline {
			continue
		}
		if strings.HasPrefix(key, "_") {
			continue
		}
		val, ok := s.safeExport(key)
		if !ok {
			continue
		}
		out[key] = val
	}
	return out
}

func (s *Sandbox) safeExport(key string) (val any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			val, ok = nil, false
		}
	}()
	v := s.vm.GlobalObject().Get(key)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

// GetFinalAnswer returns the FinalAnswer set by the sandbox binding, if any.
func (s *Sandbox) GetFinalAnswer() (FinalAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalAnswer == nil {
		return FinalAnswer{}, false
	}
	return *s.finalAnswer, true
}

// setFinalAnswerLocked sets the final answer if unset. Must hold s.mu.
func (s *Sandbox) setFinalAnswerLocked(answer FinalAnswer) {
	if s.finalAnswer != nil {
		return
	}
	s.finalAnswer = &answer
}

// GetLocal returns one captured local by name (as of the last Execute call).
func (s *Sandbox) GetLocal(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locals := s.captureLocalsLocked()
	v, ok := locals[name]
	return v, ok
}

// GetLocals returns all captured locals (as of the last Execute call).
func (s *Sandbox) GetLocals() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureLocalsLocked()
}

// GetSubCalls returns the sub-LLM calls recorded during the last Execute.
func (s *Sandbox) GetSubCalls() []SubLLMCallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubLLMCallRecord(nil), s.subCalls...)
}

// GetAggregateSubUsage sums Usage across the last Execute's sub-calls.
func (s *Sandbox) GetAggregateSubUsage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total Usage
	for _, c := range s.subCalls {
		total = total.Add(c.Usage)
	}
	return total
}

// Reset clears captured state (locals, final answer, sub-call log) but
// keeps the CompletionService binding and the underlying Runtime (so
// `context` need not be reloaded). Locals are cleared by re-baselining the
// global object against its current keys.
func (s *Sandbox) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalAnswer = nil
	s.subCalls = nil
	s.stdout.Reset()
	s.stderr.Reset()
	s.snapshotBaseline()
}
