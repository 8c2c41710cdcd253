package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/linggen/linggen-agent/pkg/models"
)

// ExecutorConfig tunes the shared executor machinery.
type ExecutorConfig struct {
	// DefaultTimeout applies to any tool without a per-tool override.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns the 30s default subprocess timeout.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{DefaultTimeout: 30 * time.Second}
}

// Executor validates and executes one tool call at a time against the
// registry, enforcing a timeout and panic-safety contract. Within one
// turn, calls execute strictly sequentially in parse order — Executor
// itself is safe for concurrent use, but the Turn Loop is the one that
// chooses not to parallelize sibling calls.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
	perTool  map[string]Config

	schemasMu sync.Mutex
	schemas   map[string]*jsonschema.Schema
}

// NewExecutor builds an Executor bound to registry.
func NewExecutor(registry *Registry, config ExecutorConfig, perTool map[string]Config) *Executor {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if perTool == nil {
		perTool = map[string]Config{}
	}
	return &Executor{registry: registry, config: config, perTool: perTool, schemas: make(map[string]*jsonschema.Schema)}
}

// schemaFor compiles and caches tool's JSON Schema. A tool whose schema
// fails to compile is treated as unvalidated rather than fatal — that's an
// authoring bug in the tool, not a model error, so Execute still runs.
func (e *Executor) schemaFor(tool Tool) (*jsonschema.Schema, bool) {
	e.schemasMu.Lock()
	defer e.schemasMu.Unlock()

	if s, ok := e.schemas[tool.Name()]; ok {
		return s, s != nil
	}
	s, err := jsonschema.CompileString(tool.Name(), string(tool.Schema()))
	if err != nil {
		e.schemas[tool.Name()] = nil
		return nil, false
	}
	e.schemas[tool.Name()] = s
	return s, true
}

// validateArgs checks req.Args against tool's schema, returning a
// non-empty error message when invalid (malformed JSON or a schema
// violation), empty when args pass or no schema could be compiled.
func (e *Executor) validateArgs(tool Tool, req Request) string {
	schema, ok := e.schemaFor(tool)
	if !ok {
		return ""
	}
	var v interface{} = map[string]interface{}{}
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &v); err != nil {
			return fmt.Sprintf("invalid JSON arguments: %v", err)
		}
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Sprintf("arguments do not match %s's schema: %v", tool.Name(), err)
	}
	return ""
}

// Execute runs one tool call to completion (or timeout, or panic recovery),
// never returning a Go error for a tool-level failure — those are encoded
// in the returned ToolResult's Error variant so the model can observe and
// adapt: errors inside a turn are recoverable by design. Execute has no
// error return; every outcome, including an unknown tool, is a ToolResult.
func (e *Executor) Execute(ctx context.Context, req Request) models.ToolResult {
	tool, ok := e.registry.Get(req.ToolName)
	if !ok {
		return models.ToolResult{
			Kind:       models.ToolResultError,
			ErrKind:    models.ErrorKindNotFound,
			Message:    fmt.Sprintf("tool not found: %s", req.ToolName),
			ToolCallID: req.ToolCallID,
		}
	}

	if msg := e.validateArgs(tool, req); msg != "" {
		return models.ToolResult{
			Kind:       models.ToolResultError,
			ErrKind:    models.ErrorKindPolicy,
			Message:    msg,
			ToolCallID: req.ToolCallID,
		}
	}

	timeout := e.config.DefaultTimeout
	if cfg, ok := e.perTool[req.ToolName]; ok && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	result := e.executeWithTimeout(ctx, tool, req, timeout)
	result.ToolCallID = req.ToolCallID
	return result
}

// executeWithTimeout races the tool's Execute against a timeout context,
// recovering from panics so a misbehaving tool can never crash the loop.
func (e *Executor) executeWithTimeout(ctx context.Context, tool Tool, req Request, timeout time.Duration) models.ToolResult {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v\n%s", ErrToolPanic, r, debug.Stack())}
			}
		}()
		result, err := tool.Execute(execCtx, req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return models.NewErrorResult(ClassifyError(out.err), out.err.Error())
		}
		return out.result
	case <-execCtx.Done():
		// Don't block on <-done: a tool that ignores ctx cancellation must
		// not be allowed to hang the executor. Tools that spawn subprocesses
		// are expected to use exec.CommandContext so the process itself is
		// killed when execCtx is done.
		if execCtx.Err() == context.DeadlineExceeded {
			return models.NewErrorResult(models.ErrorKindTimeout,
				fmt.Sprintf("tool %s timed out after %s", tool.Name(), timeout))
		}
		return models.NewErrorResult(models.ErrorKindPolicy, "cancelled")
	}
}
