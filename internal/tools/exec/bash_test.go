package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/linggen/linggen-agent/internal/toolexec"
)

func TestBashToolRunsAllowlistedCommand(t *testing.T) {
	tool := NewBashTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"cmd": "echo hello"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError() {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", res.ExitCode)
	}
}

func TestBashToolRejectsDisallowedCommand(t *testing.T) {
	tool := NewBashTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"cmd": "rm -rf /"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError() {
		t.Fatal("expected a policy error for a disallowed command")
	}
}

func TestBashToolTimesOut(t *testing.T) {
	tool := NewBashTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"cmd": "sleep 5", "timeout_ms": 50})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Stderr, "timed out after") {
		t.Fatalf("expected timeout note in stderr, got %+v", res)
	}
	if res.ExitCode != nil {
		t.Fatalf("expected a nil exit code on timeout, got %v", *res.ExitCode)
	}
}
