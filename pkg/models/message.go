// Package models defines the data shapes shared across the agent engine:
// sessions, messages, tool calls and results, runs, file activity, and the
// events broadcast from a running turn.
package models

import "time"

// Role indicates the author of a session message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in a session's append-only history. Its composite
// key for ordering and scoping is (SessionID, AgentID, CreatedAt).
type Message struct {
	ID           string         `json:"id" yaml:"id"`
	SessionID    string         `json:"session_id" yaml:"session_id"`
	AgentID      string         `json:"agent_id" yaml:"agent_id"`
	FromID       string         `json:"from_id" yaml:"from_id"`
	ToID         string         `json:"to_id,omitempty" yaml:"to_id,omitempty"`
	Role         Role           `json:"role" yaml:"role"`
	Content      string         `json:"content" yaml:"content"`
	IsObservation bool          `json:"is_observation,omitempty" yaml:"is_observation,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolResults  []ToolResult   `json:"tool_results,omitempty" yaml:"tool_results,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// TimestampNanos is the monotonically increasing ordering key within a
	// session; CreatedAt is its human-readable counterpart.
	TimestampNanos int64     `json:"timestamp" yaml:"timestamp"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Attachment is an image passed alongside a user message (the Turn Loop
// contract's optional_images). Data carries the raw bytes for providers
// that accept inline image content; URL is set instead when the image is
// referenced rather than embedded.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Session is an ordered, append-only sequence of messages scoped to
// (ProjectPath, ID). The store never rewrites history.
type Session struct {
	ID          string    `json:"id" yaml:"id"`
	ProjectPath string    `json:"project_path" yaml:"-"`
	Title       string    `json:"title" yaml:"title"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Agent is a named configuration driving one Turn Loop: its role prompt,
// model binding, permitted tool set, and delegation policy.
type Agent struct {
	ID             string         `json:"id"`
	RolePrompt     string         `json:"role_prompt"`
	Model          string         `json:"model"`
	Capabilities   []string       `json:"capabilities"` // permitted tool names / groups
	MaxDepth       int            `json:"max_depth"`
	AllowedChildren []string      `json:"allowed_children,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}
