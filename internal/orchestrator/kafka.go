//go:build enterprise
// +build enterprise

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// TraceSink receives decoded trace events published by a TracePublisher. The
// sink must not block indefinitely; StartTraceConsumer does not bound how
// long it waits for a sink call to return.
type TraceSink func(ctx context.Context, env TraceEnvelope) error

// StartTraceConsumer reads trace-event messages from topic and hands each to
// sink via a worker pool. Malformed messages are logged and committed (there
// is no DLQ topic for a stream of observability events: a bad record is
// simply dropped). Messages are committed only after a successful sink call,
// or after sinkRetries failed attempts.
func StartTraceConsumer(
	ctx context.Context,
	brokers []string,
	groupID string,
	topic string,
	readerConfig *kafka.ReaderConfig,
	sink TraceSink,
	workerCount int,
	sinkRetries int,
) error {
	rc := kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if readerConfig != nil {
		rc = *readerConfig
		rc.Brokers = brokers
		rc.GroupID = groupID
		rc.Topic = topic
		if rc.MinBytes == 0 {
			rc.MinBytes = 1
		}
		if rc.MaxBytes == 0 {
			rc.MaxBytes = 10e6
		}
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	if sinkRetries <= 0 {
		sinkRetries = 3
	}

	reader := kafka.NewReader(rc)
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("error closing trace reader: %v", err)
		}
	}()

	jobs := make(chan kafka.Message, workerCount*4)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			for msg := range jobs {
				var env TraceEnvelope
				if err := json.Unmarshal(msg.Value, &env); err != nil {
					log.Printf("worker=%d dropping malformed trace event: %v", workerID, err)
					commit(ctx, reader, msg)
					continue
				}

				var lastErr error
				for attempt := 1; attempt <= sinkRetries; attempt++ {
					if err := sink(ctx, env); err != nil {
						lastErr = err
						if attempt < sinkRetries && ctx.Err() == nil {
							backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
							sleepCtx, cancel := context.WithTimeout(ctx, backoff)
							<-sleepCtx.Done()
							cancel()
							continue
						}
					} else {
						lastErr = nil
					}
					break
				}
				if lastErr != nil {
					log.Printf("worker=%d trace sink failed after %d attempts (run_id=%s type=%s): %v", workerID, sinkRetries, env.RunID, env.Type, lastErr)
				}

				commit(ctx, reader, msg)
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Printf("trace fetch error: %v", err)
				t := time.NewTimer(500 * time.Millisecond)
				select {
				case <-t.C:
				case <-ctx.Done():
					if !t.Stop() {
						<-t.C
					}
					return
				}
				continue
			}

			select {
			case jobs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

func commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.Printf("trace commit failed (topic=%s partition=%d offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, err)
	}
}
