// Command rlmbench runs the needle-in-haystack benchmark against the
// configured completion backend and writes an HTML report, optionally
// persisting aggregated results to ClickHouse for trend tracking.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/bench"
	"manifold/internal/cache"
	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/llm/providers"
	"manifold/internal/observability"
	"manifold/internal/rlm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	haystackSize := flag.Int("haystack-size", 200_000, "generated haystack size in characters")
	needleOffset := flag.Int("needle-offset", 100_000, "character offset at which the needle is inserted")
	needleValue := flag.String("needle-value", "ABCDEF", "needle value embedded as NEEDLE=<value>")
	runs := flag.Int("runs", 5, "number of repetitions to run")
	seed := flag.Int64("seed", 1, "random seed for haystack filler text")
	reportPath := flag.String("report", "", "path to write the HTML report (defaults to bench.report_dir/rlmbench-<timestamp>.html)")
	redisAddr := flag.String("sub-call-cache", "", "optional redis address for caching sub-LLM-call responses across runs")
	traceKafkaBrokers := flag.String("trace-kafka-brokers", "", "optional comma-separated Kafka brokers to stream trace events to (requires building with -tags enterprise)")
	traceKafkaTopic := flag.String("trace-kafka-topic", "rlm.traces", "Kafka topic for -trace-kafka-brokers")
	flag.Parse()

	if err := run(cfg, benchFlags{
		haystackSize:      *haystackSize,
		needleOffset:      *needleOffset,
		needleValue:       *needleValue,
		runs:              *runs,
		seed:              *seed,
		reportPath:        *reportPath,
		redisAddr:         *redisAddr,
		traceKafkaBrokers: *traceKafkaBrokers,
		traceKafkaTopic:   *traceKafkaTopic,
	}); err != nil {
		log.Fatal().Err(err).Msg("rlmbench")
	}
}

type benchFlags struct {
	haystackSize      int
	needleOffset      int
	needleValue       string
	runs              int
	seed              int64
	reportPath        string
	redisAddr         string
	traceKafkaBrokers string
	traceKafkaTopic   string
}

func run(cfg config.Config, f benchFlags) error {
	observability.InitLogger("", cfg.Obs.LogLevel)
	ctx := context.Background()
	shutdown, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	} else if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	httpClient := observability.NewHTTPClient(nil)
	service, err := providers.Build(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("build completion service: %w", err)
	}

	if f.redisAddr != "" {
		store, err := cache.NewRedisResponseStore(f.redisAddr)
		if err != nil {
			return fmt.Errorf("connect sub-call cache: %w", err)
		}
		defer store.Close()
		service = cache.NewCachingCompletionService(service, cache.NewSubCallCache(store, 10*time.Minute))
	}

	engCfg := rlm.EngineConfig{
		MaxIterations:    cfg.MaxIterations,
		SystemPrompt:     cfg.SystemPrompt,
		Verbose:          cfg.Verbose,
		SandboxTimeout:   cfg.SandboxTimeout,
		ReportCharBudget: cfg.ReportCharBudget,
	}
	if cfg.EnableSplitText {
		engCfg.SplitText = chunk.NewSplitTextFunc()
	}
	engine := rlm.New(service, engCfg)

	generator := bench.NewNeedleGenerator()
	fixture := generator.Generate(bench.NeedleConfig{
		HaystackSize: f.haystackSize,
		NeedleOffset: f.needleOffset,
		NeedleValue:  f.needleValue,
		Rand:         rand.New(rand.NewSource(f.seed)),
	})

	warnIfOverBudget(cfg, fixture)

	runner := bench.NewRunner(engine)

	runID := fmt.Sprintf("rlmbench-%d", runAtNow().UnixNano())
	traceOnEvent, closeTraceSink, err := newTraceSink(f.traceKafkaBrokers, f.traceKafkaTopic, runID)
	if err != nil {
		return fmt.Errorf("build trace sink: %w", err)
	}
	if traceOnEvent != nil {
		runner.SetOnEvent(traceOnEvent)
		defer func() { _ = closeTraceSink() }()
	}

	results := runner.RunN(ctx, fixture, f.runs)

	summary := bench.NewAggregator().Summarize(results)
	log.Info().
		Int("total", summary.Total).
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Int("errored", summary.Errored).
		Float64("pass_rate", summary.PassRate).
		Dur("mean_latency", summary.MeanLatency).
		Dur("p95_latency", summary.P95Latency).
		Msg("rlmbench_summary")

	if err := writeReport(cfg, f, results); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.Bench.ClickHouseDSN != "" {
		store, err := bench.NewClickHouseStore(ctx, bench.ClickHouseConfig{DSN: cfg.Bench.ClickHouseDSN})
		if err != nil {
			return fmt.Errorf("open clickhouse store: %w", err)
		}
		defer store.Close()
		if err := store.Insert(ctx, "needle-in-haystack", runAtNow(), results); err != nil {
			return fmt.Errorf("persist results to clickhouse: %w", err)
		}
	}

	return nil
}

func writeReport(cfg config.Config, f benchFlags, results []bench.RunResult) error {
	path := f.reportPath
	if path == "" {
		dir := cfg.Bench.ReportDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, fmt.Sprintf("rlmbench-%d.html", runAtNow().Unix()))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	report, err := bench.NewReport()
	if err != nil {
		return err
	}
	if err := report.Write(file, "Needle-in-haystack benchmark", results); err != nil {
		return err
	}

	log.Info().Str("path", path).Msg("rlmbench_report_written")
	return nil
}

// warnIfOverBudget logs a warning when the generated fixture's estimated
// token count would not fit in the configured model's context window, since
// that would make a benchmark failure a budgeting artifact rather than a
// genuine retrieval miss.
func warnIfOverBudget(cfg config.Config, fixture bench.Fixture) {
	model := activeModel(cfg)
	window, known := chunk.ModelContextWindow(model)
	budget := chunk.NewBudget(window, activeMaxTokens(cfg))
	estimated := chunk.EstimateTokens(fixture.Context) + chunk.EstimateTokens(fixture.Prompt)
	if !budget.CanFit(estimated) {
		log.Warn().
			Str("model", model).
			Bool("window_known", known).
			Int("window_tokens", window).
			Int("estimated_tokens", estimated).
			Msg("fixture likely exceeds the model's context window")
	}
}

func activeModel(cfg config.Config) string {
	switch cfg.Provider {
	case "openai":
		return cfg.OpenAI.Model
	case "google":
		return cfg.Google.Model
	default:
		return cfg.Anthropic.Model
	}
}

func activeMaxTokens(cfg config.Config) int {
	switch cfg.Provider {
	case "openai":
		return cfg.OpenAI.MaxTokens
	case "google":
		return cfg.Google.MaxTokens
	default:
		return cfg.Anthropic.MaxTokens
	}
}

// runAtNow is the sole Date/time touchpoint, isolated so only this command's
// (not the library's) wall-clock use needs to change if callers ever need to
// inject a fixed clock for testing.
func runAtNow() time.Time { return time.Now() }
