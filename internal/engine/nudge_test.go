package engine

import (
	"encoding/json"
	"testing"

	"github.com/linggen/linggen-agent/pkg/models"
)

func TestSelectNudgeInvalidJSON(t *testing.T) {
	curr := turnOutcome{rawReply: "broken {", malformed: true}
	kind, msg := selectNudge(turnOutcome{}, curr, false)
	if kind != NudgeInvalidJSON {
		t.Fatalf("kind = %v, want NudgeInvalidJSON", kind)
	}
	if msg == "" {
		t.Error("expected a non-empty nudge message")
	}
}

func TestSelectNudgePlanOnly(t *testing.T) {
	curr := turnOutcome{thought: "Here's the plan:\n1. Read the file\n2. Edit it"}
	kind, _ := selectNudge(turnOutcome{}, curr, false)
	if kind != NudgePlanOnly {
		t.Fatalf("kind = %v, want NudgePlanOnly", kind)
	}
}

func TestSelectNudgeNoneForPlainCompletion(t *testing.T) {
	curr := turnOutcome{thought: "The task is complete."}
	kind, _ := selectNudge(turnOutcome{}, curr, false)
	if kind != NudgeNone {
		t.Fatalf("kind = %v, want NudgeNone", kind)
	}
}

func TestSelectNudgeRedundantToolAcrossTurns(t *testing.T) {
	call := models.ToolCall{Name: "Read", Args: json.RawMessage(`{"path":"a.go"}`)}
	prev := turnOutcome{calls: []models.ToolCall{call}}
	curr := turnOutcome{calls: []models.ToolCall{call}}
	kind, _ := selectNudge(prev, curr, true)
	if kind != NudgeRedundantTool {
		t.Fatalf("kind = %v, want NudgeRedundantTool", kind)
	}
}

func TestSelectNudgeRedundantToolWithinTurn(t *testing.T) {
	call := models.ToolCall{Name: "Grep", Args: json.RawMessage(`{"pattern":"foo"}`)}
	curr := turnOutcome{calls: []models.ToolCall{call, call}}
	kind, _ := selectNudge(turnOutcome{}, curr, false)
	if kind != NudgeRedundantTool {
		t.Fatalf("kind = %v, want NudgeRedundantTool", kind)
	}
}

func TestSelectNudgeRepetition(t *testing.T) {
	prev := turnOutcome{rawReply: "I am stuck."}
	curr := turnOutcome{rawReply: "I am stuck."}
	kind, _ := selectNudge(prev, curr, true)
	if kind != NudgeRepetition {
		t.Fatalf("kind = %v, want NudgeRepetition", kind)
	}
}

func TestSelectNudgeDifferentArgsNotRedundant(t *testing.T) {
	prev := turnOutcome{calls: []models.ToolCall{{Name: "Read", Args: json.RawMessage(`{"path":"a.go"}`)}}}
	curr := turnOutcome{calls: []models.ToolCall{{Name: "Read", Args: json.RawMessage(`{"path":"b.go"}`)}}}
	kind, _ := selectNudge(prev, curr, true)
	if kind != NudgeNone {
		t.Fatalf("kind = %v, want NudgeNone for distinct args", kind)
	}
}
