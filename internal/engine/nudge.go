package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linggen/linggen-agent/pkg/models"
)

// NudgeKind identifies which of the four nudge heuristics fired.
type NudgeKind string

const (
	NudgeNone          NudgeKind = ""
	NudgeInvalidJSON   NudgeKind = "invalid_json"
	NudgeRedundantTool NudgeKind = "redundant_tool"
	NudgePlanOnly      NudgeKind = "plan_only"
	NudgeRepetition    NudgeKind = "repetition"
)

// turnOutcome is the bookkeeping the nudge selector needs about the
// current and previous turn to evaluate all four heuristics.
type turnOutcome struct {
	rawReply  string
	thought   string
	calls     []models.ToolCall
	malformed bool
}

// selectNudge picks at most one nudge for the next turn's prompt. Only one
// nudge is injected per turn; the first applicable heuristic wins, checked
// in a fixed order below.
func selectNudge(prev, curr turnOutcome, hasPrev bool) (NudgeKind, string) {
	if len(curr.calls) == 0 {
		if curr.malformed {
			return NudgeInvalidJSON, fmt.Sprintf(
				"Your previous reply did not contain a valid tool call. "+
					"If you intended to call a tool, emit a single well-formed "+
					"JSON object {\"name\": ..., \"args\": {...}}. Your reply was:\n\n%s",
				curr.rawReply)
		}
		if looksLikePlanUpdate(curr.thought) {
			return NudgePlanOnly, "You described a plan but did not call a tool. " +
				"If you are proposing a plan for approval, call ExitPlanMode. " +
				"Otherwise, proceed by calling the next tool directly."
		}
	}

	if hasPrev && len(prev.calls) > 0 && len(curr.calls) > 0 {
		last := prev.calls[len(prev.calls)-1]
		first := curr.calls[0]
		if sameCall(last, first) {
			return NudgeRedundantTool, fmt.Sprintf(
				"You called %s with identical arguments to your previous call. "+
					"Use the prior result instead of repeating the call, or change "+
					"your approach.", first.Name)
		}
	}
	if sameCallSequenceRepeats(curr.calls) {
		last := curr.calls[len(curr.calls)-1]
		return NudgeRedundantTool, fmt.Sprintf(
			"You called %s twice in a row with identical arguments. Use the "+
				"prior result instead of repeating the call.", last.Name)
	}

	if hasPrev && prev.rawReply != "" && prev.rawReply == curr.rawReply {
		return NudgeRepetition, "Your last two replies were identical. " +
			"Take a different action or explain why you are stuck."
	}

	return NudgeNone, ""
}

// sameCall reports whether two tool calls have the same canonical name and
// JSON-equal normalised args (object key order does not matter).
func sameCall(a, b models.ToolCall) bool {
	if a.Name != b.Name {
		return false
	}
	return jsonEqual(a.Args, b.Args)
}

// sameCallSequenceRepeats reports whether any adjacent pair within one
// turn's parsed calls is an identical repeat.
func sameCallSequenceRepeats(calls []models.ToolCall) bool {
	for i := 1; i < len(calls); i++ {
		if sameCall(calls[i-1], calls[i]) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(a) == string(b)
	}
	ae, _ := json.Marshal(av)
	be, _ := json.Marshal(bv)
	return string(ae) == string(be)
}

// looksLikePlanUpdate heuristically detects a "here's my plan" reply with
// no tool calls: a thought that names a plan explicitly, or enumerates
// steps as a numbered/bulleted list, signals the model is presenting a
// plan for approval rather than genuinely finishing the task — it should
// have called ExitPlanMode instead of replying in prose.
func looksLikePlanUpdate(thought string) bool {
	if thought == "" {
		return false
	}
	lower := strings.ToLower(thought)
	if strings.Contains(lower, "plan:") || strings.Contains(lower, "my plan") ||
		strings.Contains(lower, "here's the plan") || strings.Contains(lower, "proposed plan") {
		return true
	}

	lines := strings.Split(thought, "\n")
	listLines := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isListItem(trimmed) {
			listLines++
		}
	}
	return listLines >= 2
}

func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return true
	}
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if (r == '.' || r == ')') && i > 0 {
			return true
		}
		break
	}
	return false
}
