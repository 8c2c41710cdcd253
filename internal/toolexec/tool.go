package toolexec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linggen/linggen-agent/pkg/models"
)

// ProgressEvent is emitted on a tool's progress channel while it runs (e.g.
// one per Bash stdout/stderr line), when Request.Progress is set. The
// executor passes the channel through unchanged and does not publish these
// events itself; the Turn Loop supplies no Progress channel, so no per-line
// Activity events reach the Event Bus.
type ProgressEvent struct {
	ToolName string
	Stream   string // "stdout" | "stderr" | ""
	Line     string
}

// Tool is a named, side-effecting operation in the fixed vocabulary. Schema
// returns a JSON Schema describing Execute's expected args shape; the
// executor validates model-supplied args against it before Execute ever
// runs, so implementations can assume well-typed input once args have
// passed per-tool normalization.
//
// Example (a tool with no side effects):
//
//	type EchoTool struct{}
//
//	func (EchoTool) Name() string { return "echo" }
//	func (EchoTool) Description() string { return "Echoes the input text back." }
//	func (EchoTool) Schema() json.RawMessage {
//		return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
//	}
//	func (EchoTool) Execute(ctx context.Context, req Request) (models.ToolResult, error) {
//		var args struct{ Text string `json:"text"` }
//		json.Unmarshal(req.Args, &args)
//		return models.NewSuccessResult(args.Text), nil
//	}
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, req Request) (models.ToolResult, error)
}

// Request bundles everything a Tool needs to run: {tool_name, args,
// workspace_root, progress_channel?}.
type Request struct {
	ToolCallID    string
	ToolName      string
	Args          json.RawMessage
	WorkspaceRoot string
	Progress      chan<- ProgressEvent // nil if the caller doesn't want progress

	// RunID/AgentID/Depth identify the delegation context this call
	// executes in; set by the Turn Loop, read by Task and AskUser to
	// enforce the depth limit and AskUser's root-only restriction.
	RunID   string
	AgentID string
	Depth   int
}

// Config is the executor's tool-call tuning: a single timeout applied to
// every tool call.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns the executor-wide defaults: a 30s per-tool timeout.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}
