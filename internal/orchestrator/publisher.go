//go:build enterprise
// +build enterprise

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"manifold/internal/rlm"
)

// Producer abstracts the Kafka writer behavior needed by TracePublisher.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TraceEnvelope is the wire shape published for each rlm.TraceEvent.
type TraceEnvelope struct {
	RunID     string         `json:"run_id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Iteration int            `json:"iteration"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// TracePublisher streams rlm.TraceEvents to a Kafka topic for out-of-process
// observers such as a dashboard. It is never imported by the core Driver;
// callers wire it via an rlm.Options.OnEvent adapter.
type TracePublisher struct {
	producer Producer
	topic    string
	runID    string
}

// NewTracePublisherFromBrokers dials brokers (comma-separated) and returns a
// TracePublisher that publishes to topic tagging every event with runID.
func NewTracePublisherFromBrokers(brokers, topic, runID string) (*TracePublisher, error) {
	if brokers = strings.TrimSpace(brokers); brokers == "" {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if topic = strings.TrimSpace(topic); topic == "" {
		return nil, fmt.Errorf("trace topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i, b := range brokerList {
		brokerList[i] = strings.TrimSpace(b)
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerList...),
		Balancer: &kafka.LeastBytes{},
	}

	return &TracePublisher{producer: w, topic: topic, runID: runID}, nil
}

// OnEvent adapts TracePublisher.Publish to the rlm.Options.OnEvent callback
// shape. Publish errors are swallowed (matching the Engine's own tolerance
// for a misbehaving trace sink) but the error is still returned from Publish
// itself for callers that want to observe it directly.
func (p *TracePublisher) OnEvent(ctx context.Context) func(rlm.TraceEvent) {
	return func(ev rlm.TraceEvent) {
		_ = p.Publish(ctx, ev)
	}
}

// Publish writes one trace event to the configured topic.
func (p *TracePublisher) Publish(ctx context.Context, ev rlm.TraceEvent) error {
	env := TraceEnvelope{
		RunID:     p.runID,
		Type:      string(ev.Type),
		Timestamp: ev.Timestamp,
		Iteration: ev.Iteration,
		Payload:   ev.Payload,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal trace event: %w", err)
	}
	return p.producer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(p.runID),
		Value: payload,
	})
}

// Close releases the underlying Kafka writer.
func (p *TracePublisher) Close() error {
	if w, ok := p.producer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
