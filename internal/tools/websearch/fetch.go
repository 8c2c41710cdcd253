package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultFetchMaxBytes is WebFetch's default content cap.
const DefaultFetchMaxBytes = 100 * 1024

// WebFetchTool implements the WebFetch tool: {url, max_bytes?} ->
// {url, content, content_type, truncated}.
type WebFetchTool struct {
	maxBytes  int
	extractor *ContentExtractor
}

// NewWebFetchTool creates a WebFetch tool with the given default byte cap
// (0 uses DefaultFetchMaxBytes).
func NewWebFetchTool(maxBytes int) *WebFetchTool {
	if maxBytes <= 0 {
		maxBytes = DefaultFetchMaxBytes
	}
	return &WebFetchTool{maxBytes: maxBytes, extractor: NewContentExtractor()}
}

func (t *WebFetchTool) Name() string { return "WebFetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its readable, tag-stripped content."
}

func (t *WebFetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "URL to fetch (http/https only)."},
			"max_bytes": {"type": "integer", "minimum": 0}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args struct {
		URL      string `json:"url"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.URL) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "url is required"), nil
	}

	parsed, err := url.Parse(args.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return models.NewErrorResult(models.ErrorKindPolicy, "url scheme must be http or https"), nil
	}

	limit := t.maxBytes
	if args.MaxBytes > 0 && args.MaxBytes < limit {
		limit = args.MaxBytes
	}

	content, contentType, err := t.extractor.ExtractBounded(ctx, args.URL, limit)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("fetch failed: %v", err)), nil
	}

	truncated := false
	runes := []rune(content)
	if len(runes) > limit {
		content = string(runes[:limit])
		truncated = true
	}

	return models.ToolResult{
		Kind:      models.ToolResultFileContent,
		Path:      args.URL,
		Content:   content,
		Truncated: truncated,
		Text:      contentType,
	}, nil
}
