//go:build !enterprise

package main

import (
	"fmt"

	"manifold/internal/rlm"
)

// newTraceSink is the non-enterprise-build stand-in: internal/orchestrator's
// Kafka trace stream is only compiled with the "enterprise" build tag, so a
// non-empty brokers flag here is a configuration error rather than silently
// ignored.
func newTraceSink(brokers, topic, runID string) (func(rlm.TraceEvent), func() error, error) {
	if brokers == "" {
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("trace-kafka-brokers requires building with -tags enterprise")
}
