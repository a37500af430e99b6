package rlm

import (
	"fmt"
	"sort"
	"strings"
)

const defaultReportCharBudget = 20_000

// defaultSystemPrompt explains the code-writing protocol: how to open a
// repl block, the available bindings, and the requirement to call the
// final-answer binding when done. The caller may override it wholesale via
// EngineConfig.SystemPrompt.
const defaultSystemPrompt = `You are a recursive language model. You never see the full context directly; you only see its size and shape. To read, search, or summarize it you must write and run small JavaScript programs.

Open a program with a fenced block tagged "repl":

` + "```repl" + `
// your code here
` + "```" + `

Inside a repl block you have:
  - context: the supplied context value (string, array, or object).
  - llm_query(prompt, modelOverride?): ask a sub-LLM one question, returns its answer as a string.
  - llm_query_batched(prompts, modelOverride?): ask several questions concurrently, returns answers in the same order as prompts.
  - print(...): write to stdout so you can see it in the next turn.
  - giveFinalAnswer({ message, data? }): call this exactly once, when you know the answer.
  - FINAL(value) / FINAL_VAR(name): shorthand final-answer forms; FINAL_VAR reads a variable you set with "var" at top level.

Use "var" (not let/const) for any top-level variable you want to still be available in a later turn.

Work step by step: inspect the context's size, slice or chunk it, use llm_query/llm_query_batched to extract or summarize what you need, and only call the final-answer binding once you are confident in the result. Do not guess; if context is large, read it in pieces via sub-LLM calls rather than assuming its contents.`

// PromptBuilder assembles the system prompt, the one-time context-metadata
// turn, per-iteration user turns, and iteration-history entries.
type PromptBuilder struct {
	systemPrompt     string
	reportCharBudget int
}

// NewPromptBuilder constructs a PromptBuilder. An empty systemPrompt uses
// defaultSystemPrompt; a non-positive reportCharBudget uses
// defaultReportCharBudget.
func NewPromptBuilder(systemPrompt string, reportCharBudget int) *PromptBuilder {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	if reportCharBudget <= 0 {
		reportCharBudget = defaultReportCharBudget
	}
	return &PromptBuilder{systemPrompt: systemPrompt, reportCharBudget: reportCharBudget}
}

// SystemMessage returns the fixed system-role Message.
func (b *PromptBuilder) SystemMessage() Message {
	return Message{Role: RoleSystem, Content: b.systemPrompt}
}

// MetadataMessage returns the one-time assistant-role Message stating the
// context's descriptive type, its total rendered character length, and its
// per-chunk lengths (truncated past 100 chunks), plus an optional
// schema description.
func (b *PromptBuilder) MetadataMessage(desc contextDescriptor, schemaDescription string) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The context you will work with is of type %q.\n", desc.Kind)
	fmt.Fprintf(&sb, "Its total rendered length is %d characters.\n", desc.TotalLength)

	lens := desc.ChunkLengths
	truncated := false
	if len(lens) > 100 {
		lens = lens[:100]
		truncated = true
	}
	parts := make([]string, len(lens))
	for i, l := range lens {
		parts[i] = fmt.Sprintf("%d", l)
	}
	sb.WriteString("Chunk lengths: [" + strings.Join(parts, ", "))
	if truncated {
		fmt.Fprintf(&sb, "] + %d more", len(desc.ChunkLengths)-100)
	} else {
		sb.WriteString("]")
	}
	sb.WriteString("\n")

	if strings.TrimSpace(schemaDescription) != "" {
		sb.WriteString("Schema description:\n")
		sb.WriteString(schemaDescription)
		sb.WriteString("\n")
	}

	return Message{Role: RoleAssistant, Content: sb.String()}
}

// IterationUserTurn builds the per-iteration user turn for the root prompt
// at iteration index i (0-based).
func (b *PromptBuilder) IterationUserTurn(prompt string, i int) Message {
	var lead string
	if i == 0 {
		lead = "You have not yet interacted with the context. "
	} else {
		lead = "Continuing from your prior interaction with the context above, "
	}
	content := fmt.Sprintf(
		"%sWrite a repl block to make progress, then call the final-answer binding once you are confident. The question to answer is: %q",
		lead, prompt,
	)
	return Message{Role: RoleUser, Content: content}
}

// FinalRequestTurn builds the extra "final-request" user turn issued when
// the iteration limit is hit.
func (b *PromptBuilder) FinalRequestTurn() Message {
	return Message{
		Role: RoleUser,
		Content: "You have reached the iteration limit. Using what you have already learned, " +
			"call the final-answer binding now with your best answer.",
	}
}

// IterationHistoryMessages builds the Messages appended to history after one
// iteration executes: the verbatim assistant response, then one user
// Message per executed CodeBlock containing its code and formatted
// ExecutionReport.
func (b *PromptBuilder) IterationHistoryMessages(rawResponse string, blocks []CodeBlock, reports []ExecutionReport) []Message {
	msgs := make([]Message, 0, 1+len(blocks))
	msgs = append(msgs, Message{Role: RoleAssistant, Content: rawResponse})
	for i, block := range blocks {
		var report ExecutionReport
		if i < len(reports) {
			report = reports[i]
		}
		content := "```repl\n" + block.Code + "\n```\n\n" + b.FormatExecutionReport(report)
		msgs = append(msgs, Message{Role: RoleUser, Content: content})
	}
	return msgs
}

// FormatExecutionReport concatenates stdout, stderr, the REPL variables
// line, and (if set) an error hint, truncating to reportCharBudget.
func (b *PromptBuilder) FormatExecutionReport(report ExecutionReport) string {
	var sb strings.Builder
	if report.Stdout != "" {
		sb.WriteString(report.Stdout)
	}
	if report.Stderr != "" {
		sb.WriteString(report.Stderr)
	}

	names := make([]string, 0, len(report.Locals))
	for name := range report.Locals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		sb.WriteString("REPL variables: [" + strings.Join(names, ", ") + "]\n")
	}

	if report.Error != "" {
		sb.WriteString("The program raised an error. Review the message above, fix the mistake, and try again.\n")
	}

	rendered := sb.String()
	if rendered == "" {
		return "No output"
	}
	if len(rendered) > b.reportCharBudget {
		elided := len(rendered) - b.reportCharBudget
		rendered = rendered[:b.reportCharBudget] + fmt.Sprintf("\n... [%d characters elided]", elided)
	}
	return rendered
}
