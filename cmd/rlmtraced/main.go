//go:build enterprise

// Command rlmtraced consumes the Kafka trace-event stream a TracePublisher
// (wired from cmd/rlmbench via -trace-kafka-brokers) writes to, logging each
// event for an out-of-process observer such as a dashboard.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"manifold/internal/observability"
	"manifold/internal/orchestrator"
)

func main() {
	brokersCSV := flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
	topic := flag.String("topic", "rlm.traces", "Kafka topic to consume")
	groupID := flag.String("group", "rlm-traced", "consumer group id")
	workers := flag.Int("workers", 4, "consumer worker pool size")
	sinkRetries := flag.Int("sink-retries", 3, "sink retry attempts per message before it is dropped")
	checkTimeout := flag.Duration("check-timeout", 10*time.Second, "broker reachability check timeout")
	ensureTopic := flag.Bool("ensure-topic", true, "create the topic if it doesn't already exist")
	partitions := flag.Int("topic-partitions", 1, "partitions to use when creating the topic")
	replication := flag.Int("topic-replication-factor", 1, "replication factor to use when creating the topic")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	observability.InitLogger("", *logLevel)

	brokers := splitBrokers(*brokersCSV)
	if len(brokers) == 0 {
		log.Fatal().Msg("no brokers configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.CheckBrokers(ctx, brokers, *checkTimeout); err != nil {
		log.Fatal().Err(err).Msg("kafka brokers unreachable")
	}

	if *ensureTopic {
		topics := []kafka.TopicConfig{{
			Topic:             *topic,
			NumPartitions:     *partitions,
			ReplicationFactor: *replication,
		}}
		if err := orchestrator.EnsureTopics(ctx, brokers, topics); err != nil {
			log.Fatal().Err(err).Msg("ensure topic")
		}
	}

	sink := func(_ context.Context, env orchestrator.TraceEnvelope) error {
		log.Info().
			Str("run_id", env.RunID).
			Str("event", env.Type).
			Int("iteration", env.Iteration).
			Interface("payload", env.Payload).
			Msg("rlm_trace_event_received")
		return nil
	}

	err := orchestrator.StartTraceConsumer(ctx, brokers, *groupID, *topic, nil, sink, *workers, *sinkRetries)
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("trace consumer")
	}
}

func splitBrokers(csv string) []string {
	var out []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
