package rlm

import (
	"encoding/json"
	"fmt"
)

// ContextValue is the caller-supplied value bound as `context` inside the
// Sandbox. It is opaque to the Driver: a string, an ordered sequence, a
// keyed mapping, or a nested composition thereof.
type ContextValue = any

// contextKind is the descriptor tag attached to the metadata turn.
type contextKind string

const (
	kindString contextKind = "string"
	kindArray  contextKind = "array"
	kindObject contextKind = "object"
)

// contextDescriptor is computed once per completion and feeds the
// PromptBuilder's metadata turn.
type contextDescriptor struct {
	Kind         contextKind
	TotalLength  int
	ChunkLengths []int
}

// describeContext classifies value and computes its rendered-text length and
// per-chunk lengths. Per the open question in the design notes: a string
// reports a single chunk equal to its own length; an ordered sequence of
// strings reports the length of each element; anything else (keyed mapping,
// nested composition, or a sequence of non-strings) is rendered to a single
// JSON string and reported as one chunk. The only hard requirement is that
// the reported total equals the rendered-text length.
func describeContext(value ContextValue) contextDescriptor {
	switch v := value.(type) {
	case nil:
		return contextDescriptor{Kind: kindString, TotalLength: 0, ChunkLengths: []int{0}}
	case string:
		return contextDescriptor{Kind: kindString, TotalLength: len(v), ChunkLengths: []int{len(v)}}
	case []string:
		lens := make([]int, len(v))
		total := 0
		for i, s := range v {
			lens[i] = len(s)
			total += len(s)
		}
		if len(lens) == 0 {
			lens = []int{0}
		}
		return contextDescriptor{Kind: kindArray, TotalLength: total, ChunkLengths: lens}
	case []any:
		lens := make([]int, 0, len(v))
		total := 0
		for _, item := range v {
			rendered := renderToText(item)
			lens = append(lens, len(rendered))
			total += len(rendered)
		}
		if len(lens) == 0 {
			lens = []int{0}
		}
		return contextDescriptor{Kind: kindArray, TotalLength: total, ChunkLengths: lens}
	default:
		rendered := renderToText(v)
		return contextDescriptor{Kind: kindObject, TotalLength: len(rendered), ChunkLengths: []int{len(rendered)}}
	}
}

// renderToText renders an arbitrary value to its text form, used both for
// computing character counts and for exposing non-string contexts to the
// Sandbox's JSON-based builtins.
func renderToText(value ContextValue) string {
	if s, ok := value.(string); ok {
		return s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
