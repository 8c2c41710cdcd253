package files

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultGrepMaxResults is Grep's default cap.
const DefaultGrepMaxResults = 200

// GrepTool implements the Grep tool: {query, globs?, max_results?} ->
// SearchMatches. Regex search with an escaped-literal fallback when query
// doesn't compile as a valid regex.
type GrepTool struct {
	resolver Resolver
}

// NewGrepTool creates a Grep tool scoped to the workspace.
func NewGrepTool(cfg Config) *GrepTool {
	return &GrepTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *GrepTool) Name() string        { return "Grep" }
func (t *GrepTool) Description() string { return "Search workspace file contents by regex (or literal text)." }

func (t *GrepTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"globs": {"oneOf": [{"type": "string"}, {"type": "array", "items": {"type": "string"}}]},
			"max_results": {"type": "integer", "minimum": 1}
		},
		"required": ["query"]
	}`)
}

type grepArgs struct {
	Query      string          `json:"query"`
	Globs      json.RawMessage `json:"globs"`
	MaxResults int             `json:"max_results"`
}

func (t *GrepTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args grepArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "query is required"), nil
	}
	patterns, err := decodeStringOrArray(args.Globs)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "globs must be a string or array of strings"), nil
	}

	re, err := regexp.Compile(args.Query)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(args.Query))
	}

	max := args.MaxResults
	if max <= 0 {
		max = DefaultGrepMaxResults
	}

	root := t.resolver.rootAbs()
	ig := loadGitignore(root)
	var out []models.SearchMatch

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || len(out) >= max {
			if len(out) >= max {
				return fs.SkipAll
			}
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
		if len(patterns) > 0 {
			matched := false
			for _, pattern := range patterns {
				if globMatch(pattern, rel) {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}
		grepFile(p, rel, re, max, &out)
		return nil
	})

	if len(out) > max {
		out = out[:max]
	}
	return models.ToolResult{Kind: models.ToolResultSearchMatches, Matches: out}, nil
}

func grepFile(abs, rel string, re *regexp.Regexp, max int, out *[]models.SearchMatch) {
	f, err := os.Open(abs)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(*out) >= max {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			*out = append(*out, models.SearchMatch{
				Path:    rel,
				Line:    lineNo,
				Snippet: strings.TrimRight(line, " \t\r"),
			})
		}
	}
}
