package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// EditTool implements the Edit tool: {path, old_string, new_string,
// replace_all?} -> Success. Exact-string replacement; fails when old_string
// isn't present in the file.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an Edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace, MemoryRoot: cfg.MemoryRoot}}
}

func (t *EditTool) Name() string        { return "Edit" }
func (t *EditTool) Description() string { return "Replace an exact string in a file within the workspace." }

func (t *EditTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to edit, relative to workspace root."},
			"old_string": {"type": "string", "description": "Exact text to replace."},
			"new_string": {"type": "string", "description": "Replacement text."},
			"replace_all": {"type": "boolean", "description": "Replace every occurrence instead of just the first."}
		},
		"required": ["path", "old_string", "new_string"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args struct {
		Path       string `json:"path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Path) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "path is required"), nil
	}
	if args.OldString == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "old_string is required"), nil
	}

	resolved, err := t.resolver.Resolve(args.Path)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindNotFound, fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(data)
	if !strings.Contains(content, args.OldString) {
		return models.NewErrorResult(models.ErrorKindPolicy, "old_string not found in file"), nil
	}

	var replacements int
	if args.ReplaceAll {
		replacements = strings.Count(content, args.OldString)
		content = strings.ReplaceAll(content, args.OldString, args.NewString)
	} else {
		replacements = 1
		content = strings.Replace(content, args.OldString, args.NewString, 1)
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("write file: %v", err)), nil
	}

	return models.NewSuccessResult(fmt.Sprintf("replaced %d occurrence(s) in %s", replacements, args.Path)), nil
}
