//go:build enterprise

package main

import (
	"context"
	"fmt"

	"manifold/internal/orchestrator"
	"manifold/internal/rlm"
)

// newTraceSink dials brokers (comma-separated) and returns an OnEvent
// adapter that streams every rlm.TraceEvent produced by this run's
// completions to topic, plus a closer to flush the underlying Kafka writer.
// An empty brokers string disables the sink (nil, nil, nil).
func newTraceSink(brokers, topic, runID string) (func(rlm.TraceEvent), func() error, error) {
	if brokers == "" {
		return nil, nil, nil
	}
	pub, err := orchestrator.NewTracePublisherFromBrokers(brokers, topic, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("build trace publisher: %w", err)
	}
	return pub.OnEvent(context.Background()), pub.Close, nil
}
