package models

import "encoding/json"

// ToolCall is one model-requested tool invocation. Name is canonicalised to
// the fixed vocabulary before the call reaches the executor; Args is the
// free-form, per-tool-normalised argument object.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResultKind discriminates the tagged ToolResult variant.
type ToolResultKind string

const (
	ToolResultFileList      ToolResultKind = "file_list"
	ToolResultFileContent   ToolResultKind = "file_content"
	ToolResultSearchMatches ToolResultKind = "search_matches"
	ToolResultCommandOutput ToolResultKind = "command_output"
	ToolResultScreenshot    ToolResultKind = "screenshot"
	ToolResultSuccess       ToolResultKind = "success"
	ToolResultError         ToolResultKind = "error"
)

// ErrorKind categorises a ToolResultError per the five-kind taxonomy.
type ErrorKind string

const (
	ErrorKindPolicy   ErrorKind = "policy"
	ErrorKindTimeout  ErrorKind = "timeout"
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindExternal ErrorKind = "external"
	ErrorKindAuth     ErrorKind = "auth"
)

// SearchMatch is one Grep hit.
type SearchMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// ToolResult is the tagged-variant result of a tool call. Every field group
// corresponds to exactly one Kind; callers switch on Kind before reading the
// matching fields. The struct (not an interface) keeps it trivially
// serialisable and size-bounded, matching the tool executor's contract that
// every result is serialisable and bounded.
type ToolResult struct {
	Kind ToolResultKind `json:"kind"`

	// FileList
	Files []string `json:"files,omitempty"`

	// FileContent
	Path      string `json:"path,omitempty"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	// SearchMatches
	Matches []SearchMatch `json:"matches,omitempty"`

	// CommandOutput
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`

	// Screenshot
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`

	// Success
	Text string `json:"text,omitempty"`

	// Error
	ErrKind ErrorKind `json:"error_kind,omitempty"`
	Message string    `json:"message,omitempty"`

	// ToolCallID correlates this result back to its originating call; set
	// by the executor, not by individual tool implementations.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// IsError reports whether this result is the Error variant.
func (r ToolResult) IsError() bool {
	return r.Kind == ToolResultError
}

// NewErrorResult builds an Error-kind ToolResult.
func NewErrorResult(kind ErrorKind, message string) ToolResult {
	return ToolResult{Kind: ToolResultError, ErrKind: kind, Message: message}
}

// NewSuccessResult builds a Success-kind ToolResult.
func NewSuccessResult(text string) ToolResult {
	return ToolResult{Kind: ToolResultSuccess, Text: text}
}
