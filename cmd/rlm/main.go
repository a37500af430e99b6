// Command rlm runs a single recursive-language-model completion against a
// context value read from stdin (or a file) and prints the final answer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/chunk"
	"manifold/internal/config"
	"manifold/internal/llm/providers"
	"manifold/internal/observability"
	"manifold/internal/rlm"
	"manifold/internal/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	prompt := flag.String("q", "", "question to ask over the supplied context")
	contextFile := flag.String("context-file", "", "path to a file holding the context value (default: stdin); plain text unless -context-json is set")
	contextJSON := flag.Bool("context-json", false, "parse the context input as JSON instead of treating it as a raw string")
	contextSchemaFile := flag.String("context-schema-file", "", "path to a JSON value whose shape is described to the root LLM as the context schema")
	maxIterations := flag.Int("max-iterations", cfg.MaxIterations, "maximum root-LLM iterations before forcing a final answer")
	verbose := flag.Bool("verbose", cfg.Verbose, "enable verbose iteration logging")
	flag.Parse()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: rlm -q \"...\" [-context-file path] [-context-json] [-context-schema-file path]")
		os.Exit(2)
	}

	cfg.MaxIterations = *maxIterations
	cfg.Verbose = *verbose

	if err := run(cfg, *prompt, *contextFile, *contextSchemaFile, *contextJSON); err != nil {
		log.Fatal().Err(err).Msg("rlm")
	}
}

func run(cfg config.Config, prompt, contextFile, contextSchemaFile string, contextAsJSON bool) error {
	observability.InitLogger("", cfg.Obs.LogLevel)
	baseCtx := context.Background()
	shutdown, err := observability.InitOTel(baseCtx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	} else if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	contextValue, err := loadContext(contextFile, contextAsJSON)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	schemaDescription, err := loadContextSchema(contextSchemaFile)
	if err != nil {
		return fmt.Errorf("load context schema: %w", err)
	}

	httpClient := observability.NewHTTPClient(nil)
	service, err := providers.Build(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("build completion service: %w", err)
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

	var onEvent func(rlm.TraceEvent)
	if cfg.Verbose {
		onEvent = func(ev rlm.TraceEvent) {
			log.Debug().Str("type", string(ev.Type)).Int("iteration", ev.Iteration).Msg("rlm_trace")
		}
	}

	runCtx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	start := time.Now()
	result, err := engine.Completion(runCtx, prompt, rlm.Options{
		Context:           contextValue,
		SchemaDescription: schemaDescription,
		OnEvent:           onEvent,
	})
	if err != nil {
		return fmt.Errorf("completion: %w", err)
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Int("iterations", result.Iterations).
		Int("total_calls", result.Usage.TotalCalls).
		Int("sub_calls", result.Usage.SubCalls).
		Int("total_tokens", result.Usage.TokenUsage.TotalTokens).
		Msg("rlm_completion_ok")

	printAnswer(result.Answer)
	return nil
}

// printAnswer prints the message, and the structured payload (if any) as
// JSON on a following line so scripted callers can parse it.
func printAnswer(answer rlm.FinalAnswer) {
	fmt.Println(answer.Message)
	if answer.Data == nil {
		return
	}
	if b, err := json.Marshal(answer.Data); err == nil {
		fmt.Println(string(b))
	}
}

// loadContext reads the context value from path, or stdin when path is
// empty. With asJSON set the bytes are unmarshaled into a generic value
// (object/array/string/number); otherwise the raw text is used as-is.
func loadContext(path string, asJSON bool) (rlm.ContextValue, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if !asJSON {
		return string(data), nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse context json: %w", err)
	}
	return value, nil
}

// loadContextSchema reads a JSON value from path and renders its shape into
// a schema description string. An empty path disables the schema turn.
func loadContextSchema(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return "", fmt.Errorf("parse schema json: %w", err)
	}
	desc, err := schema.Describe(value)
	if err != nil {
		return "", &rlm.ContextSchemaError{Err: err}
	}
	return desc, nil
}
