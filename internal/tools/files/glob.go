package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultGlobMaxResults is Glob's default cap.
const DefaultGlobMaxResults = 200

// GlobTool implements the Glob tool: {globs?, max_results?} -> FileList.
// Walks the workspace honouring .gitignore and hidden-file exclusion; no
// third-party gitignore/glob library appears anywhere in the example pack
// (see DESIGN.md), so matching is hand-rolled over filepath.WalkDir.
type GlobTool struct {
	resolver Resolver
}

// NewGlobTool creates a Glob tool scoped to the workspace.
func NewGlobTool(cfg Config) *GlobTool {
	return &GlobTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *GlobTool) Name() string        { return "Glob" }
func (t *GlobTool) Description() string { return "List workspace files matching glob patterns." }

func (t *GlobTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"globs": {"oneOf": [{"type": "string"}, {"type": "array", "items": {"type": "string"}}]},
			"max_results": {"type": "integer", "minimum": 1}
		}
	}`)
}

type globArgs struct {
	Globs      json.RawMessage `json:"globs"`
	MaxResults int             `json:"max_results"`
}

func (t *GlobTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args globArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	patterns, err := decodeStringOrArray(args.Globs)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "globs must be a string or array of strings"), nil
	}
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}

	max := args.MaxResults
	if max <= 0 {
		max = DefaultGlobMaxResults
	}

	ig := loadGitignore(t.resolver.rootAbs())

	var matches []string
	root := t.resolver.rootAbs()
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if shouldSkipDir(d.Name()) || ig.matches(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHiddenPath(rel) || ig.matches(rel, false) {
			return nil
		}
		for _, pattern := range patterns {
			if globMatch(pattern, rel) {
				matches = append(matches, rel)
				break
			}
		}
		if len(matches) >= max {
			return fs.SkipAll
		}
		return nil
	})

	sort.Strings(matches)
	if len(matches) > max {
		matches = matches[:max]
	}
	return models.ToolResult{Kind: models.ToolResultFileList, Files: matches}, nil
}

func decodeStringOrArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []string{asString}, nil
	}
	var asSlice []string
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		return asSlice, nil
	}
	return nil, fmt.Errorf("unsupported shape")
}

func isHiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// globMatch supports "**" (any number of path segments) in addition to
// filepath.Match's single-segment "*"/"?"/"[...]" syntax.
func globMatch(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, name)
		if ok {
			return true
		}
		// Also allow a bare pattern like "*.go" to match at any depth.
		ok, _ = filepath.Match(pattern, filepath.Base(name))
		return ok
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(name, prefix) {
		ok, _ := filepath.Match(prefix, name)
		if !ok {
			return false
		}
	}
	if suffix == "" {
		return true
	}
	ok, _ := filepath.Match(suffix, filepath.Base(name))
	if ok {
		return true
	}
	return strings.HasSuffix(name, suffix)
}
