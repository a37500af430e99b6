package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRLMEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"RLM_PROVIDER", "RLM_SYSTEM_PROMPT", "RLM_VERBOSE", "RLM_MAX_ITERATIONS",
		"RLM_SANDBOX_TIMEOUT_SECONDS", "RLM_REPORT_CHAR_BUDGET", "RLM_ENABLE_SPLIT_TEXT",
		"RLM_CONFIG_FILE", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "OPENAI_API_KEY",
		"GOOGLE_API_KEY", "GOOGLE_GEMINI_KEY", "RLM_LOG_LEVEL", "RLM_JSON_LOGS",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearRLMEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, defaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, defaultSandboxTimeout, cfg.SandboxTimeout)
	assert.Equal(t, defaultReportCharBudget, cfg.ReportCharBudget)
	assert.Equal(t, "rlm", cfg.Obs.ServiceName)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearRLMEnv(t)
	t.Setenv("RLM_PROVIDER", "openai")
	t.Setenv("RLM_MAX_ITERATIONS", "5")
	t.Setenv("RLM_SANDBOX_TIMEOUT_SECONDS", "60")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 60*time.Second, cfg.SandboxTimeout)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestLoadInvalidMaxIterationsFallsBackToDefault(t *testing.T) {
	clearRLMEnv(t)
	t.Setenv("RLM_MAX_ITERATIONS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultMaxIterations, cfg.MaxIterations)
}
