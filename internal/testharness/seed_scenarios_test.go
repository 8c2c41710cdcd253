package testharness_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linggen/linggen-agent/internal/engine"
	"github.com/linggen/linggen-agent/internal/testharness"
	"github.com/linggen/linggen-agent/pkg/models"
)

// TestSeedHappyPath replays scenario 1: a single Bash call counts lines in
// a workspace file, and the run completes with a final message.
func TestSeedHappyPath(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src", "main.rs"), "fn main() {\n    println!(\"hi\");\n}\n")

	rt, err := testharness.New(testharness.Options{
		Workspace: root,
		MaxIters:  5,
		Replies: []testharness.Reply{
			{Text: "I'll count the lines.\n", ToolCall: `{"name": "Bash", "args": {"cmd": "wc -l src/main.rs"}}`},
			{Text: "src/main.rs has 3 lines."},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-happy-path", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	outcome, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "Count lines in src/main.rs using wc.")
	if err != nil {
		t.Fatalf("RunRoot: %v", err)
	}
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %+v", outcome)
	}
	if outcome.FinalMessage == "" {
		t.Fatal("expected a non-empty final message")
	}
}

// TestSeedPathEscapeRejection replays scenario 2: a Read outside the
// workspace must come back as a policy error, never an opened file.
func TestSeedPathEscapeRejection(t *testing.T) {
	root := t.TempDir()

	rt, err := testharness.New(testharness.Options{
		Workspace: root,
		MaxIters:  2,
		Replies: []testharness.Reply{
			{ToolCall: `{"name": "Read", "args": {"path": "../../etc/passwd"}}`},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-path-escape", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	outcome, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "Read ../../etc/passwd")
	if err != nil {
		t.Fatalf("RunRoot: %v", err)
	}
	if outcome.Kind != engine.OutcomeIterationCapExceeded {
		t.Fatalf("expected the model to keep retrying into the iteration cap given a repeating policy error, got %+v", outcome)
	}

	history, err := rt.Sessions.History(session.ID, "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !anyToolResultHasErrorKind(history, "policy") {
		t.Fatal("expected a policy-kind error observation and no opened file")
	}
}

// TestSeedRedundantToolNudge replays scenario 3: two identical Glob calls
// back-to-back trigger the redundant-tool nudge in the next prompt.
func TestSeedRedundantToolNudge(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src", "main.rs"), "fn main() {}\n")

	glob := `{"name": "Glob", "args": {"globs": ["**/*.rs"]}}`
	rt, err := testharness.New(testharness.Options{
		Workspace: root,
		MaxIters:  4,
		Replies: []testharness.Reply{
			{ToolCall: glob},
			{ToolCall: glob},
			{Text: "Done."},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-redundant-nudge", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "List every Rust file twice."); err != nil {
		t.Fatalf("RunRoot: %v", err)
	}

	requests := rt.Requests()
	if len(requests) < 3 {
		t.Fatalf("expected at least 3 model calls, got %d", len(requests))
	}
	if !strings.Contains(requests[2], "Glob") || !strings.Contains(strings.ToLower(requests[2]), "identical") {
		t.Fatalf("expected the third prompt to carry the redundant-tool nudge naming Glob, got: %s", requests[2])
	}
}

// TestSeedDelegationDepthLimit replays scenario 4: with max_depth=2, a
// three-level Task chain has its third hop rejected with a depth-limit
// policy error, and no child run is created for the rejected hop.
func TestSeedDelegationDepthLimit(t *testing.T) {
	root := t.TempDir()

	rt, err := testharness.New(testharness.Options{
		Workspace:   root,
		MaxIters:    5,
		MaxDepth:    2,
		ExtraAgents: []string{"A", "B"},
		Replies: []testharness.Reply{
			{ToolCall: `{"name": "Task", "args": {"target_agent_id": "A", "task": "go"}}`}, // ling -> A (depth 1)
			{ToolCall: `{"name": "Task", "args": {"target_agent_id": "B", "task": "go"}}`}, // A -> B (depth 2)
			{ToolCall: `{"name": "Task", "args": {"target_agent_id": "C", "task": "go"}}`}, // B -> C, rejected
			{Text: "B is done."},                                                          // B's final turn
			{Text: "A is done."},                                                          // A's final turn
			{Text: "ling is done."},                                                       // root's final turn
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-delegation-depth", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	outcome, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "Delegate three levels deep.")
	if err != nil {
		t.Fatalf("RunRoot: %v", err)
	}
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %+v", outcome)
	}

	for _, run := range rt.Delegation.Store().ListRuns() {
		if run.AgentID == "C" {
			t.Fatal("expected no child run for C, the delegation hop that exceeded max_depth")
		}
	}
}

// TestSeedSmartSearchFallback replays scenario 5: requesting a misspelled
// path finds the one file that matches by name, and the resolved path
// (with a substitution note) comes back in the result's path field while
// the file's bytes come back unmodified in content.
func TestSeedSmartSearchFallback(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src", "main.rs"), "fn main() {}\n")

	rt, err := testharness.New(testharness.Options{
		Workspace: root,
		MaxIters:  3,
		Replies: []testharness.Reply{
			{ToolCall: `{"name": "Read", "args": {"path": "Main.rs"}}`},
			{Text: "Found it."},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-smart-search", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "Read Main.rs"); err != nil {
		t.Fatalf("RunRoot: %v", err)
	}

	history, err := rt.Sessions.History(session.ID, "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	found := false
	for _, msg := range history {
		for _, res := range msg.ToolResults {
			if res.Path == "" {
				continue
			}
			found = true
			if !strings.HasPrefix(res.Path, "src/main.rs") {
				t.Fatalf("expected the resolved path to lead with src/main.rs, got %q", res.Path)
			}
			if !strings.Contains(res.Path, "Main.rs") {
				t.Fatalf("expected a substitution note naming the original request, got %q", res.Path)
			}
			if !strings.Contains(res.Content, "fn main()") {
				t.Fatalf("expected unmodified file bytes in content, got %q", res.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected a FileContent observation in the session history")
	}
}

// TestSeedBashTimeout replays scenario 6: a Bash call that outlives its
// timeout returns a nil exit code and a stderr note, and the child
// process is gone by the time Execute returns (implicit in exec.Run's
// use of exec.CommandContext, exercised directly by internal/tools/exec's
// own tests; this checks the tool-call surface the Turn Loop observes).
func TestSeedBashTimeout(t *testing.T) {
	root := t.TempDir()

	rt, err := testharness.New(testharness.Options{
		Workspace: root,
		MaxIters:  2,
		Replies: []testharness.Reply{
			{ToolCall: `{"name": "Bash", "args": {"cmd": "sleep 5", "timeout_ms": 100}}`},
			{Text: "It timed out."},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Server.Close()
	defer testharness.DrainEvents(rt)()

	session, err := rt.Sessions.GetOrCreate("seed-bash-timeout", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, err := rt.Loop.RunRoot(context.Background(), "ling", session.ID, "Run sleep 5 with a 100ms timeout."); err != nil {
		t.Fatalf("RunRoot: %v", err)
	}

	history, err := rt.Sessions.History(session.ID, "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	found := false
	for _, msg := range history {
		for _, res := range msg.ToolResults {
			if res.Kind != models.ToolResultCommandOutput {
				continue
			}
			found = true
			if res.ExitCode != nil {
				t.Fatalf("expected a nil exit code on timeout, got %v", *res.ExitCode)
			}
			if !strings.HasSuffix(res.Stderr, "timed out after 100ms\n") {
				t.Fatalf("expected stderr to end with the timeout note, got %q", res.Stderr)
			}
		}
	}
	if !found {
		t.Fatal("expected a CommandOutput observation in the session history")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func anyToolResultHasErrorKind(history []*models.Message, kind string) bool {
	for _, msg := range history {
		for _, res := range msg.ToolResults {
			if string(res.ErrKind) == kind {
				return true
			}
		}
	}
	return false
}
