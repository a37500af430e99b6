package rlm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataMessageTruncatesPast100Chunks(t *testing.T) {
	b := NewPromptBuilder("", 0)
	lens := make([]int, 150)
	for i := range lens {
		lens[i] = i
	}
	desc := contextDescriptor{Kind: kindArray, TotalLength: 1000, ChunkLengths: lens}

	msg := b.MetadataMessage(desc, "")

	assert.Contains(t, msg.Content, "+ 50 more")
}

func TestMetadataMessageIncludesSchema(t *testing.T) {
	b := NewPromptBuilder("", 0)
	desc := contextDescriptor{Kind: kindString, TotalLength: 5, ChunkLengths: []int{5}}

	msg := b.MetadataMessage(desc, "a record with fields foo:string, bar:number")

	assert.Contains(t, msg.Content, "foo:string")
}

func TestIterationUserTurnIteration0VsN(t *testing.T) {
	b := NewPromptBuilder("", 0)

	first := b.IterationUserTurn("what is the answer?", 0)
	later := b.IterationUserTurn("what is the answer?", 3)

	assert.Contains(t, first.Content, "not yet interacted")
	assert.Contains(t, later.Content, "Continuing from")
	assert.Contains(t, first.Content, "what is the answer?")
}

func TestFormatExecutionReportEmptyIsNoOutput(t *testing.T) {
	b := NewPromptBuilder("", 0)
	report := ExecutionReport{}

	formatted := b.FormatExecutionReport(report)
	assert.Equal(t, "No output", formatted)
}

func TestFormatExecutionReportListsLocalNames(t *testing.T) {
	b := NewPromptBuilder("", 0)
	report := ExecutionReport{Locals: map[string]any{"b": 1, "a": 2, "_hidden": 3}}

	formatted := b.FormatExecutionReport(report)
	assert.Contains(t, formatted, "REPL variables: [a, b]")
}

func TestFormatExecutionReportTruncatesToBudget(t *testing.T) {
	b := NewPromptBuilder("", 50)
	report := ExecutionReport{Stdout: strings.Repeat("x", 200)}

	formatted := b.FormatExecutionReport(report)

	assert.LessOrEqual(t, len(formatted), 50+40)
	assert.Contains(t, formatted, "characters elided")
}

func TestFormatExecutionReportIncludesErrorHint(t *testing.T) {
	b := NewPromptBuilder("", 0)
	report := ExecutionReport{Error: "ReferenceError: x is not defined"}

	formatted := b.FormatExecutionReport(report)

	assert.Contains(t, formatted, "fix the mistake")
}
