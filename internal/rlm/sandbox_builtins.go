package rlm

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/sync/errgroup"
)

// registerBuiltins installs the fixed set of injected bindings described in
// SPEC_FULL.md §4.3 / spec.md §4.3: llm_query, llm_query_batched, print,
// and the final-answer sentinel pair (giveFinalAnswer, FINAL/FINAL_VAR).
// Nothing here exposes filesystem, network, process, or dynamic-loading
// capability; everything beyond these bindings is goja's built-in
// ECMAScript value surface (Math, JSON, Date, RegExp, String, Array,
// Object, ...).
func (s *Sandbox) registerBuiltins() {
	_ = s.vm.Set("print", s.builtinPrint)
	_ = s.vm.Set("console", map[string]any{
		"log":   s.builtinPrint,
		"warn":  s.builtinWarn,
		"error": s.builtinWarn,
	})
	_ = s.vm.Set("llm_query", s.builtinLLMQuery)
	_ = s.vm.Set("llm_query_batched", s.builtinLLMQueryBatched)
	_ = s.vm.Set("giveFinalAnswer", s.builtinGiveFinalAnswer)
	_ = s.vm.Set("FINAL", s.builtinFinal)
	_ = s.vm.Set("FINAL_VAR", s.builtinFinalVar)
	_ = s.vm.Set("sleep", s.builtinSleep)
}

func (s *Sandbox) registerSplitText() {
	if s.splitters == nil {
		return
	}
	_ = s.vm.Set("splitText", func(call goja.FunctionCall) goja.Value {
		text := call.Argument(0).String()
		strategy := "fixed"
		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) {
			strategy = call.Argument(1).String()
		}
		var opts map[string]any
		if len(call.Arguments) > 2 && !goja.IsUndefined(call.Argument(2)) {
			if m, ok := call.Argument(2).Export().(map[string]any); ok {
				opts = m
			}
		}
		chunks := s.splitters(text, strategy, opts)
		return s.vm.ToValue(chunks)
	})
}

func (s *Sandbox) builtinPrint(call goja.FunctionCall) goja.Value {
	s.appendStdout(joinArgs(call.Arguments) + "\n")
	return goja.Undefined()
}

func (s *Sandbox) builtinWarn(call goja.FunctionCall) goja.Value {
	s.appendStderr(joinArgs(call.Arguments) + "\n")
	return goja.Undefined()
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

func (s *Sandbox) appendStdout(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout.WriteString(text)
}

func (s *Sandbox) appendStderr(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stderr.WriteString(text)
}

func (s *Sandbox) appendSubCall(rec SubLLMCallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subCalls = append(s.subCalls, rec)
}

// builtinLLMQuery implements `llm_query(prompt, modelOverride?) -> string`.
// It blocks the calling (single) JS goroutine until the CompletionService
// responds, which is the synchronously-awaitable behavior the contract
// requires; goja has no built-in event loop, so there is no async/await
// distinction to preserve here (see DESIGN.md).
func (s *Sandbox) builtinLLMQuery(call goja.FunctionCall) goja.Value {
	prompt := call.Argument(0).String()
	modelOverride := ""
	if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) {
		modelOverride = call.Argument(1).String()
	}
	result := s.doLLMQuery(prompt, modelOverride)
	return s.vm.ToValue(result)
}

// builtinLLMQueryBatched implements
// `llm_query_batched(prompts, modelOverride?) -> string[]`, issuing all
// calls concurrently and returning index-aligned results regardless of
// completion order.
func (s *Sandbox) builtinLLMQueryBatched(call goja.FunctionCall) goja.Value {
	raw := call.Argument(0).Export()
	prompts := toStringSlice(raw)

	modelOverride := ""
	if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) {
		modelOverride = call.Argument(1).String()
	}

	results := make([]string, len(prompts))
	var g errgroup.Group
	for i, p := range prompts {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.doLLMQuery(p, modelOverride)
			return nil
		})
	}
	_ = g.Wait()

	return s.vm.ToValue(results)
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprintf("%v", item)
			}
		}
		return out
	default:
		return nil
	}
}

// doLLMQuery performs one sub-LLM call, appending exactly one
// SubLLMCallRecord before returning, and never raises back into the
// program: CompletionService errors are surfaced as a descriptive error
// string so the program decides how to proceed.
func (s *Sandbox) doLLMQuery(prompt, modelOverride string) string {
	s.mu.Lock()
	ctx := s.ctx
	system := s.system
	service := s.service
	s.mu.Unlock()

	messages := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	start := time.Now()
	resp, err := service.Complete(ctx, CompletionRequest{Messages: messages})
	elapsed := time.Since(start)

	rec := SubLLMCallRecord{
		Prompt:        prompt,
		ModelOverride: modelOverride,
		DurationMs:    elapsed.Milliseconds(),
	}

	if err != nil {
		rec.Response = fmt.Sprintf("error: sub-llm call failed: %v", err)
		s.appendSubCall(rec)
		return rec.Response
	}

	rec.Response = resp.Message.Content
	rec.Usage = resp.Usage
	s.appendSubCall(rec)
	return resp.Message.Content
}

func (s *Sandbox) builtinSleep(call goja.FunctionCall) goja.Value {
	ms := call.Argument(0).ToInteger()
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
	return goja.Undefined()
}

// builtinGiveFinalAnswer implements giveFinalAnswer({message, data?}).
// Validation failure (missing or non-string message) is silent: the final
// answer remains unset and execution continues.
func (s *Sandbox) builtinGiveFinalAnswer(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0).Export()
	obj, ok := arg.(map[string]any)
	if !ok {
		return goja.Undefined()
	}
	msg, ok := obj["message"].(string)
	if !ok {
		return goja.Undefined()
	}
	s.mu.Lock()
	s.setFinalAnswerLocked(FinalAnswer{Message: msg, Data: obj["data"]})
	s.mu.Unlock()
	return goja.Undefined()
}

// builtinFinal implements FINAL(value): stores the stringified value as
// the final answer's message.
func (s *Sandbox) builtinFinal(call goja.FunctionCall) goja.Value {
	val := call.Argument(0)
	if goja.IsUndefined(val) {
		return goja.Undefined()
	}
	msg := val.String()
	s.mu.Lock()
	s.setFinalAnswerLocked(FinalAnswer{Message: msg})
	s.mu.Unlock()
	return goja.Undefined()
}

// builtinFinalVar implements FINAL_VAR(name): resolves name against the
// current top-level bindings (the same locals the Sandbox captures after
// execution) and stores its stringified value.
func (s *Sandbox) builtinFinalVar(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	v := s.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return goja.Undefined()
	}
	msg := v.String()
	s.mu.Lock()
	s.setFinalAnswerLocked(FinalAnswer{Message: msg})
	s.mu.Unlock()
	return goja.Undefined()
}
