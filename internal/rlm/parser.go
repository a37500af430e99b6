package rlm

import (
	"regexp"
	"strings"
)

// CodeBlock is one program extracted from an LLM response, ready to execute.
type CodeBlock struct {
	Code string
}

// replFence matches non-overlapping ```repl ... ``` blocks, tolerating
// arbitrary text before, between, and after them.
var replFence = regexp.MustCompile("(?s)```repl\\s*?\\n(.*?)```")

// finalPattern is the legacy text-pattern fallback described in spec §4.1:
// a line-anchored FINAL(...) or FINAL_VAR(name) call, kept for backwards
// compatibility with root responses that never learned the sandbox
// final-answer binding. Grounded on the reference RLM runner's
// ParseFinalStatement/ExtractFinalVar pair.
var finalPattern = regexp.MustCompile(`(?m)^\s*FINAL(_VAR)?\((.*)\)\s*$`)

// ResponseParser extracts CodeBlocks (and, optionally, a legacy final-answer
// marker) from an assistant message's textual content.
type ResponseParser struct{}

// NewResponseParser constructs a ResponseParser. It holds no state; the
// constructor exists for symmetry with the rest of the component set and to
// leave room for future configuration (e.g. an alternate fence tag).
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// ParseCodeBlocks returns the ordered list of CodeBlocks found in content.
// Empty payloads (after trimming) are discarded; malformed/unclosed fences
// are ignored rather than erroring, since the parser does not validate
// syntax.
func (p *ResponseParser) ParseCodeBlocks(content string) []CodeBlock {
	matches := replFence.FindAllStringSubmatch(content, -1)
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		code := strings.TrimSpace(m[1])
		if code == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Code: code})
	}
	return blocks
}

// legacyFinalResult is what ParseLegacyFinal resolves to when it matches.
type legacyFinalResult struct {
	// Message is the resolved answer text.
	Message string
	// Err is set when a FINAL_VAR(name) reference could not be resolved
	// against the supplied locals map.
	Err string
}

// ParseLegacyFinal looks for a line-anchored FINAL(...) / FINAL_VAR(name)
// marker in content. locals is the most recent ExecutionReport's captured
// locals, consulted to resolve FINAL_VAR references. Returns ok=false if no
// marker is present.
func (p *ResponseParser) ParseLegacyFinal(content string, locals map[string]any) (result legacyFinalResult, ok bool) {
	m := finalPattern.FindStringSubmatch(content)
	if m == nil {
		return legacyFinalResult{}, false
	}
	isVar := m[1] == "_VAR"
	arg := strings.TrimSpace(m[2])
	arg = strings.Trim(arg, `"'`)

	if !isVar {
		return legacyFinalResult{Message: arg}, true
	}

	val, found := locals[arg]
	if !found {
		return legacyFinalResult{Err: "FINAL_VAR(" + arg + "): no such variable in locals"}, true
	}
	return legacyFinalResult{Message: renderToText(val)}, true
}
