package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/engine"
)

// streamChunk writes one OpenAI-compatible SSE chat-completion-chunk line
// carrying a single content delta.
func streamChunk(w http.ResponseWriter, content, finishReason string) {
	reason := "null"
	if finishReason != "" {
		reason = fmt.Sprintf("%q", finishReason)
	}
	fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"stub-model\","+
		"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", content, reason)
}

// newStubChatServer emulates an OpenAI-compatible /v1/chat/completions
// streaming endpoint that scripts the happy-path seed scenario: a first
// call replies with a Bash tool call embedded in its text, a second call
// (after the tool's observation comes back in the conversation) replies
// with a plain final message.
func newStubChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			streamChunk(w, "I'll count the lines.\n", "")
			streamChunk(w, `{"name": "Bash", "args": {"cmd": "wc -l src/main.rs"}}`, "stop")
		} else {
			streamChunk(w, "src/main.rs has 3 lines.", "stop")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	})
	return httptest.NewServer(mux)
}

// TestAgentRunEndToEnd drives the full CLI wiring path — buildRuntime
// through RunRoot — against a stub HTTP model backend, replaying the
// happy-path seed scenario: "Count lines in src/main.rs using wc."
func TestAgentRunEndToEnd(t *testing.T) {
	server := newStubChatServer(t)
	defer server.Close()

	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "main.rs"), []byte("fn main() {\n    println!(\"hi\");\n}\n"), 0o644); err != nil {
		t.Fatalf("write main.rs: %v", err)
	}

	cfg := &config.Config{
		WorkspaceRoot: root,
		MaxIters:      5,
		MaxDepth:      3,
		Agents: map[string]config.AgentConfig{
			"ling": {RolePrompt: "You are ling, a careful coding agent.", Model: "stub-model", MaxDepth: 3},
		},
		Models: map[string]config.ModelConfig{
			"stub-model": {Provider: "ollama", Name: "stub-model", APIKey: "unused", BaseURL: server.URL + "/v1"},
		},
		Logging: config.LoggingConfig{Level: "error", Format: "console"},
	}

	rt, err := buildRuntime(cfg, root, nil)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	go func() {
		for range rt.events {
		}
	}()

	session, err := rt.sessions.GetOrCreate("test-session", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	outcome, err := rt.loop.RunRoot(context.Background(), "ling", session.ID, "Count lines in src/main.rs using wc.")
	if err != nil {
		t.Fatalf("RunRoot: %v", err)
	}
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected a completed outcome, got %+v", outcome)
	}
	if outcome.FinalMessage == "" {
		t.Fatal("expected a non-empty final message")
	}

	history, err := rt.sessions.History(session.ID, "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("expected the session log to contain the run's messages")
	}
}

// TestAgentRunPathEscapeRejected replays the path-escape seed scenario
// through the same full wiring path: a Read outside the workspace must
// come back as a policy error observation, never an opened file, and the
// run must still reach a terminal outcome afterward.
func TestAgentRunPathEscapeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		streamChunk(w, `{"name": "Read", "args": {"path": "../../etc/passwd"}}`, "stop")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg := &config.Config{
		WorkspaceRoot: root,
		MaxIters:      2,
		MaxDepth:      3,
		Agents: map[string]config.AgentConfig{
			"ling": {RolePrompt: "You are ling.", Model: "stub-model", MaxDepth: 3},
		},
		Models: map[string]config.ModelConfig{
			"stub-model": {Provider: "ollama", Name: "stub-model", APIKey: "unused", BaseURL: server.URL + "/v1"},
		},
		Logging: config.LoggingConfig{Level: "error", Format: "console"},
	}

	rt, err := buildRuntime(cfg, root, nil)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	go func() {
		for range rt.events {
		}
	}()

	session, err := rt.sessions.GetOrCreate("test-session", root)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	outcome, err := rt.loop.RunRoot(context.Background(), "ling", session.ID, "Read ../../etc/passwd")
	if err != nil {
		t.Fatalf("RunRoot: %v", err)
	}
	if outcome.Kind != engine.OutcomeIterationCapExceeded {
		t.Fatalf("expected the model to keep retrying into the iteration cap given a repeating policy error, got %+v", outcome)
	}
}
