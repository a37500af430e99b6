package chunk

import "os"

// ModelContextWindow returns an approximate context window (in tokens) for
// model, used to size a Budget when the caller hasn't measured one directly
// from provider metadata. It consults a small built-in map of known model
// families, then environment-variable overrides for custom or self-hosted
// models. The bool reports whether the value came from a known mapping or
// explicit override (true) versus a conservative default fallback (false).
func ModelContextWindow(model string) (tokens int, known bool) {
	if model == "" {
		return 0, false
	}

	if v, ok := lookupContextOverride(model); ok && v > 0 {
		return v, true
	}

	if size, ok := knownContextWindows[model]; ok {
		return size, true
	}
	for prefix, size := range knownContextWindows {
		if hasModelPrefix(model, prefix) {
			return size, true
		}
	}

	if v, ok := lookupContextOverride("*"); ok && v > 0 {
		return v, true
	}

	return 32_000, false
}

// knownContextWindows holds approximate context sizes for common model
// families. Values are intentionally approximate; they size Budget, not
// provider feature gating.
var knownContextWindows = map[string]int{
	"gpt-5.2":            400_000,
	"gpt-5.2-pro":        400_000,
	"gpt-5.1":            400_000,
	"gpt-5":              400_000,
	"gpt-5-mini":         400_000,
	"gpt-5-nano":         400_000,
	"gpt-5-codex":        400_000,
	"gpt-5.1-codex":      400_000,
	"gpt-5.1-codex-mini": 400_000,
	"gpt-5.1-codex-max":  400_000,
	"gpt-5.1-mini":       400_000,
	"gpt-5.1-nano":       400_000,

	"gpt-4o":      128_000,
	"gpt-4o-mini": 128_000,

	"gpt-4.1":      1_047_576,
	"gpt-4.1-mini": 1_047_576,
	"gpt-4.1-nano": 1_047_576,

	"gpt-4-turbo":   128_000,
	"gpt-4":         8_192,
	"gpt-3.5-turbo": 16_385,

	"gpt-4o-mini-realtime-preview": 16_000,

	"claude-sonnet-4-5": 200_000,
	"claude-haiku-4-5":  200_000,
	"claude-opus-4-5":   200_000,

	"claude-sonnet-4-5-20250929": 200_000,
	"claude-haiku-4-5-20251001":  200_000,
	"claude-opus-4-5-20251101":   200_000,

	"claude-3.5":        200_000,
	"claude-3-opus":     200_000,
	"claude-3-sonnet":   200_000,
	"claude-3-haiku":    200_000,
	"claude-3.5-sonnet": 200_000,

	"gemini-3-pro-preview":  1_048_576,
	"gemini-2.5-pro":        1_048_576,
	"gemini-2.5-flash":      1_048_576,
	"gemini-2.5-flash-lite": 1_048_576,

	"gemini-2.0-flash":      1_048_576,
	"gemini-2.0-flash-lite": 1_048_576,

	"gemini-1.5-pro":   1_000_000,
	"gemini-1.5-flash": 1_000_000,
	"gemini-1.0-pro":   32_000,
}

// lookupContextOverride checks for environment overrides.
//
// Precedence:
//  1. MODEL_<SANITIZED_NAME>_CONTEXT_TOKENS
//  2. RLM_CONTEXT_WINDOW_TOKENS (global catch-all)
//
// When model == "*", only the global override is consulted.
func lookupContextOverride(model string) (int, bool) {
	if model == "*" {
		if v := os.Getenv("RLM_CONTEXT_WINDOW_TOKENS"); v != "" {
			if n, ok := parseIntEnv(v); ok {
				return n, true
			}
		}
		return 0, false
	}

	key := "MODEL_" + sanitizeModelForEnv(model) + "_CONTEXT_TOKENS"
	if v := os.Getenv(key); v != "" {
		if n, ok := parseIntEnv(v); ok {
			return n, true
		}
	}

	if v := os.Getenv("RLM_CONTEXT_WINDOW_TOKENS"); v != "" {
		if n, ok := parseIntEnv(v); ok {
			return n, true
		}
	}

	return 0, false
}

func sanitizeModelForEnv(model string) string {
	out := make([]rune, 0, len(model))
	for _, r := range model {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// hasModelPrefix treats prefix matches as sufficient to select a context
// size, so e.g. "gpt-4o-mini-2024-07-18" matches "gpt-4o-mini".
func hasModelPrefix(model, prefix string) bool {
	if len(model) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if model[i] != prefix[i] {
			return false
		}
	}
	return true
}

func parseIntEnv(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n := 0
	found := false
	for _, r := range v {
		if r < '0' || r > '9' {
			continue
		}
		found = true
		n = n*10 + int(r-'0')
	}
	if !found {
		return 0, false
	}
	return n, true
}
