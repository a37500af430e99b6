//go:build enterprise
// +build enterprise

package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/rlm"
)

type fakeProducer struct {
	msgs []kafka.Message
}

func (f *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestTracePublisherPublishMarshalsEnvelope(t *testing.T) {
	fp := &fakeProducer{}
	p := &TracePublisher{producer: fp, topic: "rlm.traces", runID: "run-1"}

	err := p.Publish(context.Background(), rlm.TraceEvent{
		Type:      rlm.EventFinalAnswer,
		Timestamp: time.Unix(100, 0),
		Iteration: 3,
		Payload:   map[string]any{"message": "done"},
	})
	require.NoError(t, err)
	require.Len(t, fp.msgs, 1)

	assert.Equal(t, "rlm.traces", fp.msgs[0].Topic)
	assert.Equal(t, "run-1", string(fp.msgs[0].Key))

	var env TraceEnvelope
	require.NoError(t, json.Unmarshal(fp.msgs[0].Value, &env))
	assert.Equal(t, "run-1", env.RunID)
	assert.Equal(t, "final_answer", env.Type)
	assert.Equal(t, 3, env.Iteration)
	assert.Equal(t, "done", env.Payload["message"])
}

func TestTracePublisherOnEventSwallowsErrors(t *testing.T) {
	p := &TracePublisher{producer: &fakeProducer{}, topic: "rlm.traces", runID: "run-2"}
	cb := p.OnEvent(context.Background())
	assert.NotPanics(t, func() {
		cb(rlm.TraceEvent{Type: rlm.EventIterationStart, Iteration: 1})
	})
}
