package engine

import (
	"encoding/json"
	"strings"

	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/pkg/models"
)

// responseFormatInstruction is the fixed portion of the prompt that tells
// the model how to emit tool calls: balanced JSON objects embedded
// anywhere in its reply, each shaped {"name": ..., "args": {...}}.
// Prose outside such objects is the agent's visible thought and is
// never parsed as a call.
const responseFormatInstruction = `When you need to use a tool, emit a JSON object anywhere in your reply shaped exactly like:
{"name": "<tool name>", "args": {<tool arguments>}}
Every such object in a reply is read and the calls run in order; after emitting your calls, stop — you will see their results before your next turn. Text outside that object is shown to the user as your reasoning and is never parsed. If you are finished and have no further tool to call, reply in plain text with no such object.`

// buildPrompt assembles the full per-turn prompt for an agent: its role
// prompt, the fixed response-format instruction enumerating the legal tool
// vocabulary, the session history scoped to this agent, an optional
// plan-mode note, and an optional nudge carried over from the previous
// turn's outcome.
func buildPrompt(rolePrompt string, allowedTools []string, history []*models.Message, planMode bool, nudge string) (system string, messages []providers.CompletionMessage) {
	var b strings.Builder
	b.WriteString(rolePrompt)
	b.WriteString("\n\n")
	b.WriteString("Tools available to you: ")
	if len(allowedTools) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(allowedTools, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString(responseFormatInstruction)
	if planMode {
		b.WriteString("\n\nYou are in plan mode: investigate and propose an approach by calling " +
			"ExitPlanMode with your plan before making any changes. Do not call mutating tools " +
			"(Write, Edit, Bash) until your plan has been approved.")
	}
	system = b.String()

	messages = historyToPrompt(history)
	if nudge != "" {
		messages = append(messages, providers.CompletionMessage{Role: "system", Content: nudge})
	}
	return system, messages
}

// historyToPrompt converts a session's recorded messages into prompt
// turns, carrying tool calls/results through unchanged so a provider can
// reconstruct multi-step tool-use context across turns.
func historyToPrompt(history []*models.Message) []providers.CompletionMessage {
	out := make([]providers.CompletionMessage, 0, len(history))
	for _, m := range history {
		out = append(out, providers.CompletionMessage{
			Role:        string(m.Role),
			Content:     m.Content,
			ToolCalls:   m.ToolCalls,
			ToolResults: m.ToolResults,
		})
	}
	return out
}

// summarizeArgs renders a tool call's args compactly for an Activity
// event's ArgsSummary field, truncating to keep events small.
func summarizeArgs(args []byte) string {
	const maxLen = 200
	s := string(args)
	if len(s) > maxLen {
		return s[:maxLen] + "…"
	}
	return s
}

// exitPlanArgs is ExitPlanMode's argument shape: a short summary and an
// optional ordered list of plan steps.
type exitPlanArgs struct {
	Summary string   `json:"summary"`
	Plan    string   `json:"plan"`
	Items   []string `json:"items"`
	Steps   []string `json:"steps"`
}

// parsePlanArgs extracts a plan's summary and items from an ExitPlanMode
// call's args, tolerating either "summary" or "plan" for the headline text
// and either "items" or "steps" for the ordered list.
func parsePlanArgs(args json.RawMessage) (summary string, items []string) {
	var parsed exitPlanArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", nil
	}
	summary = parsed.Summary
	if summary == "" {
		summary = parsed.Plan
	}
	items = parsed.Items
	if len(items) == 0 {
		items = parsed.Steps
	}
	return summary, items
}
