// Package providers defines the LLMProvider seam the Turn Loop drives its
// model calls through, plus the request/response shapes shared by every
// concrete backend (internal/providers/anthropic, internal/providers/openai).
package providers

import (
	"context"

	"github.com/linggen/linggen-agent/pkg/models"
)

// LLMProvider is implemented by each concrete model backend. Implementations
// must be safe for concurrent use — the delegation manager may drive several
// child runs' Complete calls at once.
type LLMProvider interface {
	// Complete sends req and returns a channel of streaming chunks. The
	// channel is closed when the stream ends, successfully or not; the
	// final chunk before closing carries Done=true or a non-nil Error.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name is the provider identifier used in config and logging ("anthropic", "openai").
	Name() string

	// Models lists the models this provider can serve.
	Models() []Model

	// SupportsTools reports whether this provider can be given tool
	// definitions and will return structured tool-call chunks.
	SupportsTools() bool
}

// CompletionRequest is one Turn Loop model call: role prompt plus history,
// the legal tool vocabulary for this turn, and generation parameters.
type CompletionRequest struct {
	Model     string               `json:"model"`
	System    string               `json:"system,omitempty"`
	Messages  []CompletionMessage  `json:"messages"`
	Tools     []ToolDefinition     `json:"tools,omitempty"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
}

// CompletionMessage is one entry of the conversation sent to the provider.
// Role is "user", "assistant", "tool", or "system".
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// ToolDefinition is a tool's name/description/schema as presented to a
// model, independent of the toolexec.Tool that executes it — providers
// never see a Tool's Execute method, only its advertisement.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      []byte // JSON Schema
}

// CompletionChunk is one streamed unit of a provider's reply: partial text,
// a completed tool call, or stream termination (Done or Error, mutually
// exclusive with further chunks).
type CompletionChunk struct {
	Text         string          `json:"text,omitempty"`
	ToolCall     *models.ToolCall `json:"tool_call,omitempty"`
	Done         bool            `json:"done,omitempty"`
	Error        error           `json:"-"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
}

// Model describes one model a provider can serve.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}
