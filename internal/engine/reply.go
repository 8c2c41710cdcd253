// Package engine implements the Turn Loop: the model→parse→tool→observation
// cycle driving one AgentRun from a user message to a terminal outcome.
package engine

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/linggen/linggen-agent/internal/tools/policy"
	"github.com/linggen/linggen-agent/pkg/models"
)

// ParsedReply is the result of splitting a model's raw text reply into its
// user-visible thought and the tool calls it requested. Malformed reports
// an unterminated `{` the scanner found but never closed — a signal that
// the model attempted a tool call but emitted broken JSON, distinguishing
// that case from a reply that legitimately contains no tool calls at all.
type ParsedReply struct {
	Thought   string
	ToolCalls []models.ToolCall
	Malformed bool
}

// IsKnownTool reports whether a canonicalised tool name is one the running
// agent may call — the fixed vocabulary plus any currently registered
// skill-defined tool name.
type IsKnownTool func(canonicalName string) bool

// ParseReply extracts embedded tool-call JSON objects from a model's raw
// reply: locate balanced `{...}` spans with bracket matching that
// respects quoted strings and escapes, keep only the spans
// shaped like `{"name":..., "args":...}`, canonicalise each name, and strip
// every such span (valid tool name or not) from the visible thought.
func ParseReply(raw string, isKnown IsKnownTool) ParsedReply {
	spans := findBalancedObjects(raw)

	var calls []models.ToolCall
	var cut []span
	malformed := hasUnterminatedBrace(raw)

	for _, sp := range spans {
		candidate := raw[sp.start:sp.end]
		name, args, ok := asToolCallShape(candidate)
		if !ok {
			continue
		}
		cut = append(cut, sp)

		canonical := policy.CanonicalName(name)
		if isKnown != nil && !isKnown(canonical) {
			continue
		}
		calls = append(calls, models.ToolCall{
			ID:   uuid.NewString(),
			Name: canonical,
			Args: normalizeArgs(canonical, args),
		})
	}

	return ParsedReply{
		Thought:   stripSpans(raw, cut),
		ToolCalls: calls,
		Malformed: malformed && len(calls) == 0,
	}
}

type span struct{ start, end int }

// findBalancedObjects scans raw for every top-level `{...}` span, tracking
// brace depth only outside of quoted strings and treating `\"` as a
// non-terminating escape.
func findBalancedObjects(raw string) []span {
	var spans []span
	i := 0
	for i < len(raw) {
		if raw[i] != '{' {
			i++
			continue
		}
		start := i
		depth := 0
		inString := false
		escaped := false
		end := -1

		for j := i; j < len(raw); j++ {
			c := raw[j]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = j + 1
				}
			}
			if end != -1 {
				break
			}
		}

		if end == -1 {
			// Unterminated from this '{' — advance past it and keep
			// scanning; hasUnterminatedBrace handles the nudge signal.
			i = start + 1
			continue
		}
		spans = append(spans, span{start: start, end: end})
		i = end
	}
	return spans
}

// hasUnterminatedBrace reports whether raw contains an opening '{' (outside
// a string) with no matching close — evidence the model attempted JSON and
// produced something broken.
func hasUnterminatedBrace(raw string) bool {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

// asToolCallShape reports whether candidate parses as a JSON object with
// both "name" (string) and "args" (object) at the top level, distinguishing
// a tool-call object from other JSON the model's reply may happen to
// contain.
func asToolCallShape(candidate string) (name string, args map[string]json.RawMessage, ok bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return "", nil, false
	}
	nameRaw, hasName := raw["name"]
	argsRaw, hasArgs := raw["args"]
	if !hasName || !hasArgs {
		return "", nil, false
	}
	if err := json.Unmarshal(nameRaw, &name); err != nil || name == "" {
		return "", nil, false
	}
	var argsMap map[string]json.RawMessage
	if err := json.Unmarshal(argsRaw, &argsMap); err != nil {
		return "", nil, false
	}
	return name, argsMap, true
}

// stripSpans removes every span from raw and collapses the resulting
// run of blank lines, returning the user-visible thought.
func stripSpans(raw string, spans []span) string {
	if len(spans) == 0 {
		return strings.TrimSpace(raw)
	}
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		b.WriteString(raw[prev:sp.start])
		prev = sp.end
	}
	b.WriteString(raw[prev:])

	lines := strings.Split(b.String(), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
