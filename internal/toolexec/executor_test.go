package toolexec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/linggen/linggen-agent/pkg/models"
)

type stubTool struct {
	schema  string
	execute func(ctx context.Context, req Request) (models.ToolResult, error)
}

func (t *stubTool) Name() string        { return "stub" }
func (t *stubTool) Description() string { return "a stub tool for executor tests" }
func (t *stubTool) Schema() json.RawMessage {
	return json.RawMessage(t.schema)
}
func (t *stubTool) Execute(ctx context.Context, req Request) (models.ToolResult, error) {
	return t.execute(ctx, req)
}

func newTestExecutor(tool Tool) *Executor {
	registry := NewRegistry()
	_ = registry.Register(tool)
	return NewExecutor(registry, DefaultExecutorConfig(), nil)
}

func TestExecuteRejectsArgsViolatingSchema(t *testing.T) {
	tool := &stubTool{
		schema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
		execute: func(ctx context.Context, req Request) (models.ToolResult, error) {
			t.Fatal("Execute should not run when args fail schema validation")
			return models.ToolResult{}, nil
		},
	}
	exec := newTestExecutor(tool)

	result := exec.Execute(context.Background(), Request{ToolName: "stub", Args: json.RawMessage(`{}`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindPolicy {
		t.Fatalf("expected a policy error for missing required arg, got %+v", result)
	}
}

func TestExecuteRejectsMalformedJSONArgs(t *testing.T) {
	tool := &stubTool{
		schema: `{"type":"object"}`,
		execute: func(ctx context.Context, req Request) (models.ToolResult, error) {
			t.Fatal("Execute should not run on malformed JSON args")
			return models.ToolResult{}, nil
		},
	}
	exec := newTestExecutor(tool)

	result := exec.Execute(context.Background(), Request{ToolName: "stub", Args: json.RawMessage(`{not json`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindPolicy {
		t.Fatalf("expected a policy error for malformed JSON, got %+v", result)
	}
}

func TestExecuteRunsToolOnValidArgs(t *testing.T) {
	tool := &stubTool{
		schema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
		execute: func(ctx context.Context, req Request) (models.ToolResult, error) {
			return models.NewSuccessResult("ok"), nil
		},
	}
	exec := newTestExecutor(tool)

	result := exec.Execute(context.Background(), Request{ToolName: "stub", Args: json.RawMessage(`{"path":"a.txt"}`)})
	if result.IsError() {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestExecuteToolNotFound(t *testing.T) {
	exec := NewExecutor(NewRegistry(), DefaultExecutorConfig(), nil)
	result := exec.Execute(context.Background(), Request{ToolName: "missing", Args: json.RawMessage(`{}`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindNotFound {
		t.Fatalf("expected a not-found error, got %+v", result)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	tool := &stubTool{
		schema: `{"type":"object"}`,
		execute: func(ctx context.Context, req Request) (models.ToolResult, error) {
			<-ctx.Done()
			return models.ToolResult{}, ctx.Err()
		},
	}
	registry := NewRegistry()
	_ = registry.Register(tool)
	exec := NewExecutor(registry, ExecutorConfig{DefaultTimeout: 10 * time.Millisecond}, nil)

	result := exec.Execute(context.Background(), Request{ToolName: "stub", Args: json.RawMessage(`{}`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindTimeout {
		t.Fatalf("expected a timeout error, got %+v", result)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	tool := &stubTool{
		schema: `{"type":"object"}`,
		execute: func(ctx context.Context, req Request) (models.ToolResult, error) {
			panic("boom")
		},
	}
	exec := newTestExecutor(tool)

	result := exec.Execute(context.Background(), Request{ToolName: "stub", Args: json.RawMessage(`{}`)})
	if !result.IsError() {
		t.Fatalf("expected a recovered panic to surface as an error result, got %+v", result)
	}
}
