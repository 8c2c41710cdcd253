package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// WriteTool implements the Write tool: {path, content} -> Success. Always
// overwrites; path is sanitised the same way as Read.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a Write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace, MemoryRoot: cfg.MemoryRoot}}
}

func (t *WriteTool) Name() string        { return "Write" }
func (t *WriteTool) Description() string { return "Write content to a file in the workspace, overwriting it." }

func (t *WriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to write, relative to workspace root."},
			"content": {"type": "string", "description": "File contents to write."}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Path) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "path is required"), nil
	}

	resolved, err := t.resolver.Resolve(args.Path)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("create directory: %v", err)), nil
	}
	if err := os.WriteFile(resolved, []byte(args.Content), 0o644); err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("write file: %v", err)), nil
	}

	return models.NewSuccessResult(fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)), nil
}
