// Package config loads runtime configuration for the RLM driver: provider
// credentials, driver tuning knobs, and observability settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// ProviderConfig holds the credentials and call defaults for one LLM backend.
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-cache breakpoints.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cache_system"`
	CacheTools    bool `yaml:"cache_tools"`
	CacheMessages bool `yaml:"cache_messages"`
}

// AnthropicConfig is ProviderConfig plus Anthropic-specific extensions.
type AnthropicConfig struct {
	ProviderConfig `yaml:",inline"`
	PromptCache    AnthropicPromptCacheConfig `yaml:"prompt_cache"`
	ExtraParams    map[string]any             `yaml:"extra_params"`
}

// OpenAIConfig is ProviderConfig plus the OpenAI API surface selector.
type OpenAIConfig struct {
	ProviderConfig `yaml:",inline"`
	// API selects "completions" (chat completions, default) or "responses".
	API         string         `yaml:"api"`
	ExtraParams map[string]any `yaml:"extra_params"`
}

// GoogleConfig is ProviderConfig as consumed by the Gemini client.
type GoogleConfig struct {
	ProviderConfig `yaml:",inline"`
}

// BenchConfig configures the optional benchmark harness.
type BenchConfig struct {
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	ReportDir     string `yaml:"report_dir"`
}

// ObsConfig controls logging and tracing.
type ObsConfig struct {
	LogLevel       string `yaml:"log_level"`
	JSONLogs       bool   `yaml:"json_logs"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	ServiceName    string `yaml:"service_name"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// Config is the complete set of RLM driver settings.
type Config struct {
	Provider string `yaml:"provider"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`

	MaxIterations    int           `yaml:"max_iterations"`
	SystemPrompt     string        `yaml:"system_prompt"`
	Verbose          bool          `yaml:"verbose"`
	SandboxTimeout   time.Duration `yaml:"sandbox_timeout"`
	ReportCharBudget int           `yaml:"report_char_budget"`
	EnableSplitText  bool          `yaml:"enable_split_text"`

	Obs   ObsConfig   `yaml:"obs"`
	Bench BenchConfig `yaml:"bench"`
}

const (
	defaultMaxIterations    = 30
	defaultSandboxTimeout   = 300 * time.Second
	defaultReportCharBudget = 20_000
)

// Load builds a Config from (in increasing precedence): built-in defaults,
// an optional YAML file named by RLM_CONFIG_FILE, and environment variables
// (loaded from a .env file via godotenv.Overload, which lets repository-local
// configuration win over a stale shell environment during development).
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		MaxIterations:    defaultMaxIterations,
		SandboxTimeout:   defaultSandboxTimeout,
		ReportCharBudget: defaultReportCharBudget,
	}

	if path := strings.TrimSpace(os.Getenv("RLM_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.SandboxTimeout <= 0 {
		cfg.SandboxTimeout = defaultSandboxTimeout
	}
	if cfg.ReportCharBudget <= 0 {
		cfg.ReportCharBudget = defaultReportCharBudget
	}
	if cfg.Obs.ServiceName == "" {
		cfg.Obs.ServiceName = "rlm"
	}
	if cfg.Obs.LogLevel == "" {
		cfg.Obs.LogLevel = "info"
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("RLM_PROVIDER")); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("RLM_SYSTEM_PROMPT")); v != "" {
		cfg.SystemPrompt = v
	}
	if v := os.Getenv("RLM_VERBOSE"); v != "" {
		cfg.Verbose = parseBoolEnv(v, cfg.Verbose)
	}
	if v := os.Getenv("RLM_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("RLM_SANDBOX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SandboxTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("RLM_REPORT_CHAR_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReportCharBudget = n
		}
	}
	if v := os.Getenv("RLM_ENABLE_SPLIT_TEXT"); v != "" {
		cfg.EnableSplitText = parseBoolEnv(v, cfg.EnableSplitText)
	}

	applyProviderEnv(&cfg.Anthropic.ProviderConfig, "ANTHROPIC")
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_PROMPT_CACHE")); v != "" {
		cfg.Anthropic.PromptCache.Enabled = parseBoolEnv(v, cfg.Anthropic.PromptCache.Enabled)
	}

	applyProviderEnv(&cfg.OpenAI.ProviderConfig, "OPENAI")
	if v := strings.TrimSpace(os.Getenv("OPENAI_API")); v != "" {
		cfg.OpenAI.API = v
	}

	applyProviderEnv(&cfg.Google.ProviderConfig, "GOOGLE")
	if v := strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_KEY")); v != "" && cfg.Google.APIKey == "" {
		cfg.Google.APIKey = v
	}

	if v := strings.TrimSpace(os.Getenv("RLM_CLICKHOUSE_DSN")); v != "" {
		cfg.Bench.ClickHouseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("RLM_REPORT_DIR")); v != "" {
		cfg.Bench.ReportDir = v
	}

	if v := strings.TrimSpace(os.Getenv("RLM_LOG_LEVEL")); v != "" {
		cfg.Obs.LogLevel = v
	}
	if v := os.Getenv("RLM_JSON_LOGS"); v != "" {
		cfg.Obs.JSONLogs = parseBoolEnv(v, cfg.Obs.JSONLogs)
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Obs.OTLPEndpoint = v
	}
	if v := os.Getenv("RLM_TRACING_ENABLED"); v != "" {
		cfg.Obs.TracingEnabled = parseBoolEnv(v, cfg.Obs.TracingEnabled)
	}
}

func applyProviderEnv(pc *ProviderConfig, prefix string) {
	if v := strings.TrimSpace(os.Getenv(prefix + "_API_KEY")); v != "" {
		pc.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "_MODEL")); v != "" {
		pc.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "_BASE_URL")); v != "" {
		pc.BaseURL = v
	}
	if v := os.Getenv(prefix + "_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			pc.Temperature = f
		}
	}
	if v := os.Getenv(prefix + "_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pc.MaxTokens = n
		}
	}
}

func parseBoolEnv(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
