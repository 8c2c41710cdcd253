package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultMaxReadBytes is the default cap on Read's returned content: 64 KiB.
const DefaultMaxReadBytes = 64 * 1024

// Config controls filesystem tool defaults, shared across Read/Write/Edit.
type Config struct {
	Workspace    string
	MaxReadBytes int
	// MemoryRoot, when set, is an absolute-path tree outside Workspace that
	// Read/Write/Edit accept as-is (the agent's persistent memory store).
	MemoryRoot string
}

// ReadTool implements the Read tool: {path, max_bytes?, line_range?} ->
// FileContent, with workspace-escape rejection and a smart-search fallback
// on not-found.
type ReadTool struct {
	resolver   Resolver
	maxReadLen int
}

// NewReadTool creates a Read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = DefaultMaxReadBytes
	}
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace, MemoryRoot: cfg.MemoryRoot}, maxReadLen: limit}
}

func (t *ReadTool) Name() string { return "Read" }
func (t *ReadTool) Description() string {
	return "Read a file from the workspace, optionally limited to a line range."
}

func (t *ReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file, relative to workspace root."},
			"max_bytes": {"type": "integer", "minimum": 0, "description": "Maximum bytes to return (capped by tool default)."},
			"line_range": {
				"type": "object",
				"properties": {
					"start": {"type": "integer", "minimum": 1},
					"end": {"type": "integer", "minimum": 1}
				}
			}
		},
		"required": ["path"]
	}`)
}

type lineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type readArgs struct {
	Path      string     `json:"path"`
	MaxBytes  int        `json:"max_bytes"`
	LineRange *lineRange `json:"line_range"`
}

func (t *ReadTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args readArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Path) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "path is required"), nil
	}
	if args.LineRange != nil && args.LineRange.Start > args.LineRange.End {
		return models.NewErrorResult(models.ErrorKindPolicy, "line_range.start must be <= end"), nil
	}

	limit := t.maxReadLen
	if args.MaxBytes > 0 && args.MaxBytes < limit {
		limit = args.MaxBytes
	}

	resolved, err := t.resolver.Resolve(args.Path)
	reportPath := args.Path
	if err != nil {
		candidate, ferr := t.smartSearch(args.Path)
		if ferr != nil {
			return models.NewErrorResult(models.ErrorKindNotFound, err.Error()), nil
		}
		resolved = candidate
		reportPath = fallbackPath(t.resolver.rootAbs(), resolved, args.Path)
	} else if _, statErr := os.Stat(resolved); statErr != nil {
		candidate, ferr := t.smartSearch(args.Path)
		if ferr != nil {
			return models.NewErrorResult(models.ErrorKindNotFound, fmt.Sprintf("file not found: %s", args.Path)), nil
		}
		resolved = candidate
		reportPath = fallbackPath(t.resolver.rootAbs(), resolved, args.Path)
	}

	content, truncated, err := readBounded(resolved, limit, args.LineRange)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, err.Error()), nil
	}

	return models.ToolResult{
		Kind:      models.ToolResultFileContent,
		Path:      reportPath,
		Content:   content,
		Truncated: truncated,
	}, nil
}

// fallbackPath renders the path reported to the caller when a smart-search
// fallback found resolved instead of the originally requested path: the
// resolved path relative to root, with a note appended describing the
// substitution. The file content itself is returned unmodified.
func fallbackPath(root, resolved, requested string) string {
	rel, _ := filepath.Rel(root, resolved)
	return fmt.Sprintf("%s (Note: Original path %q not found; reading closest match instead.)", rel, requested)
}

// readBounded reads resolved, applying an optional 1-based inclusive line
// range and a byte cap. When capped mid-line, the partial line is included.
func readBounded(resolved string, limit int, lr *lineRange) (string, bool, error) {
	f, err := os.Open(resolved)
	if err != nil {
		return "", false, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if lr == nil {
		buf := make([]byte, limit+1)
		n, rerr := f.Read(buf)
		for n < len(buf) && rerr == nil {
			var m int
			m, rerr = f.Read(buf[n:])
			n += m
		}
		truncated := n > limit
		if truncated {
			n = limit
		}
		return string(buf[:n]), truncated, nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out bytes.Buffer
	lineNo := 0
	truncated := false
	for scanner.Scan() {
		lineNo++
		if lineNo < lr.Start {
			continue
		}
		if lineNo > lr.End {
			break
		}
		if out.Len()+len(scanner.Bytes())+1 > limit {
			remaining := limit - out.Len()
			if remaining > 0 {
				out.Write(scanner.Bytes()[:remaining])
			}
			truncated = true
			break
		}
		out.Write(scanner.Bytes())
		out.WriteByte('\n')
	}
	return out.String(), truncated, scanner.Err()
}

// smartSearch implements Read's not-found fallback: exact basename match
// first, then a case-insensitive contains match on the path or name.
func (t *ReadTool) smartSearch(requested string) (string, error) {
	root := t.resolver.rootAbs()
	name := filepath.Base(requested)
	lowerName := strings.ToLower(name)
	lowerReq := strings.ToLower(requested)

	var exact []string
	var contains []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if shouldSkipDir(d.Name()) {
			return nil
		}
		if d.Name() == name {
			exact = append(exact, p)
			return nil
		}
		if strings.Contains(strings.ToLower(d.Name()), lowerName) || strings.Contains(strings.ToLower(p), lowerReq) {
			contains = append(contains, p)
		}
		return nil
	})
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(exact) == 0 && len(contains) == 1 {
		return contains[0], nil
	}
	return "", fmt.Errorf("no unique match for %q", requested)
}

func shouldSkipDir(name string) bool {
	return name == ".git" || name == "node_modules" || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}
