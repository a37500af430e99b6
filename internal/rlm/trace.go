package rlm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"manifold/internal/observability"
)

// tracerName identifies this package's spans in an OTel backend.
const tracerName = "manifold/internal/rlm"

// TraceEventType enumerates the kinds of events emitted during a completion.
type TraceEventType string

const (
	EventIterationStart    TraceEventType = "iteration_start"
	EventLLMQueryStart     TraceEventType = "llm_query_start"
	EventLLMQueryEnd       TraceEventType = "llm_query_end"
	EventCodeExecutionStart TraceEventType = "code_execution_start"
	EventCodeExecutionEnd   TraceEventType = "code_execution_end"
	EventFinalAnswer        TraceEventType = "final_answer"
)

// TraceEvent is one entry in the event stream returned to the caller.
// Payload is a type-specific, JSON-friendly bag of fields; it never contains
// raw ContextValue content, but may contain prompts, responses, code,
// formatted outputs, and error strings.
type TraceEvent struct {
	Type      TraceEventType
	Timestamp time.Time
	Iteration int
	Payload   map[string]any
}

// onEventFunc is the caller's optional event sink.
type onEventFunc func(TraceEvent)

// tracer accumulates TraceEvents for one completion and forwards each to the
// caller's onEvent callback, if any, synchronously and in emission order. It
// additionally mirrors every event into the structured log (redacted) and
// brackets each llm_query/code_execution pair in an OTel span.
type tracer struct {
	events  []TraceEvent
	onEvent onEventFunc
	last    time.Time
	spans   map[string]trace.Span
}

func newTracer(onEvent onEventFunc) *tracer {
	return &tracer{onEvent: onEvent, spans: make(map[string]trace.Span)}
}

// emit records an event with a monotonically non-decreasing timestamp,
// mirrors it into the structured log and an OTel span, and forwards it to
// the caller's callback. A panic or error from the callback is swallowed;
// it must not interfere with the Driver.
func (t *tracer) emit(ctx context.Context, typ TraceEventType, iteration int, payload map[string]any) TraceEvent {
	now := time.Now()
	if !t.last.IsZero() && !now.After(t.last) {
		now = t.last.Add(time.Nanosecond)
	}
	t.last = now

	ev := TraceEvent{Type: typ, Timestamp: now, Iteration: iteration, Payload: payload}
	t.events = append(t.events, ev)

	t.handleSpan(ctx, ev)
	t.logEvent(ev)

	if t.onEvent != nil {
		t.safeInvoke(ev)
	}
	return ev
}

// handleSpan opens an OTel span on a *_start event and closes the matching
// span on its *_end counterpart, keyed by (iteration, base event name) so
// concurrent iterations never collide. Only llm_query and code_execution
// have a clean start/end bracket; iteration_start/final_answer are logged
// (see logEvent) but never span-wrapped, since an iteration that doesn't
// reach a final answer has no corresponding "iteration_end" event to close
// it on.
func (t *tracer) handleSpan(ctx context.Context, ev TraceEvent) {
	switch ev.Type {
	case EventLLMQueryStart:
		t.startSpan(ctx, ev, "llm_query")
	case EventCodeExecutionStart:
		t.startSpan(ctx, ev, "code_execution")
	case EventLLMQueryEnd:
		t.endSpan(ev, "llm_query")
	case EventCodeExecutionEnd:
		t.endSpan(ev, "code_execution")
	}
}

func (t *tracer) startSpan(ctx context.Context, ev TraceEvent, base string) {
	_, span := otel.Tracer(tracerName).Start(ctx, string(ev.Type))
	span.SetAttributes(attribute.Int("rlm.iteration", ev.Iteration))
	t.spans[spanKey(ev.Iteration, base)] = span
}

func (t *tracer) endSpan(ev TraceEvent, base string) {
	key := spanKey(ev.Iteration, base)
	span, ok := t.spans[key]
	if !ok {
		return
	}
	delete(t.spans, key)
	if errMsg, ok := ev.Payload["error"].(string); ok && errMsg != "" {
		span.SetAttributes(attribute.String("rlm.error", errMsg))
	}
	span.End()
}

func spanKey(iteration int, base string) string {
	return fmt.Sprintf("%d:%s", iteration, base)
}

// logEvent mirrors the event into the structured log with its payload
// redacted via observability.RedactJSON. The caller's onEvent callback
// still receives the unredacted payload per the CORE contract; only this
// driver-owned log mirror is redacted.
func (t *tracer) logEvent(ev TraceEvent) {
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return
	}
	redacted := observability.RedactJSON(raw)
	log.Debug().
		Str("event", string(ev.Type)).
		Int("iteration", ev.Iteration).
		RawJSON("payload", redacted).
		Msg("rlm_trace_event")
}

func (t *tracer) safeInvoke(ev TraceEvent) {
	defer func() {
		_ = recover()
	}()
	t.onEvent(ev)
}

func (t *tracer) trace() []TraceEvent {
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
