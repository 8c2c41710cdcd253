package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	_, err := resolver.Resolve("../outside.txt")
	if err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestReadWriteEdit(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Workspace: root}

	writeTool := NewWriteTool(cfg)
	readTool := NewReadTool(cfg)
	editTool := NewEditTool(cfg)

	writeArgs, _ := json.Marshal(map[string]any{"path": "notes.txt", "content": "hello world"})
	res, err := writeTool.Execute(context.Background(), toolexec.Request{Args: writeArgs, WorkspaceRoot: root})
	if err != nil || res.IsError() {
		t.Fatalf("write failed: %v %+v", err, res)
	}

	readArgs, _ := json.Marshal(map[string]any{"path": "notes.txt"})
	res, err = readTool.Execute(context.Background(), toolexec.Request{Args: readArgs, WorkspaceRoot: root})
	if err != nil || res.IsError() {
		t.Fatalf("read failed: %v %+v", err, res)
	}
	if !strings.Contains(res.Content, "hello") {
		t.Fatalf("expected content, got %s", res.Content)
	}

	editArgs, _ := json.Marshal(map[string]any{"path": "notes.txt", "old_string": "world", "new_string": "linggen"})
	res, err = editTool.Execute(context.Background(), toolexec.Request{Args: editArgs, WorkspaceRoot: root})
	if err != nil || res.IsError() {
		t.Fatalf("edit failed: %v %+v", err, res)
	}

	data, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "hello linggen" {
		t.Fatalf("unexpected content: %s", string(data))
	}
}

func TestEditFailsWhenOldStringMissing(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewEditTool(Config{Workspace: root})
	args, _ := json.Marshal(map[string]any{"path": "a.txt", "old_string": "zzz", "new_string": "q"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args, WorkspaceRoot: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError() {
		t.Fatal("expected an error result when old_string is absent")
	}
}

func TestReadLineRange(t *testing.T) {
	root := t.TempDir()
	content := "one\ntwo\nthree\nfour\n"
	if err := os.WriteFile(filepath.Join(root, "lines.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewReadTool(Config{Workspace: root})
	args, _ := json.Marshal(map[string]any{
		"path":       "lines.txt",
		"line_range": map[string]any{"start": 2, "end": 3},
	})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args, WorkspaceRoot: root})
	if err != nil || res.IsError() {
		t.Fatalf("read failed: %v %+v", err, res)
	}
	if res.Content != "two\nthree\n" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestReadSmartSearchFallback(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "pkg", "sub", "target.go"), []byte("package sub"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewReadTool(Config{Workspace: root})
	args, _ := json.Marshal(map[string]any{"path": "target.go"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args, WorkspaceRoot: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != models.ToolResultFileContent {
		t.Fatalf("expected a FileContent result via fallback, got %+v", res)
	}
	if !strings.Contains(res.Content, "package sub") {
		t.Fatalf("expected fallback content, got %q", res.Content)
	}
}
