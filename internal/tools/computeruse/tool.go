// Package computeruse implements the capture_screenshot tool: {url,
// delay_ms?} -> Screenshot{url, base64}. It drives a headless Chrome
// instance via chromedp/cdproto and rejects any URL that resolves to a
// private or internal host before the browser ever navigates there.
package computeruse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/linggen/linggen-agent/internal/net/ssrf"
	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultTimeout bounds how long a single screenshot capture may take,
// including browser launch.
const DefaultTimeout = 20 * time.Second

// MaxDelay caps the delay_ms argument so a misbehaving caller can't stall
// a run indefinitely waiting on a page to settle.
const MaxDelay = 10 * time.Second

// Tool implements capture_screenshot by launching a headless Chrome tab,
// navigating to the requested URL, and returning a PNG screenshot.
type Tool struct {
	timeout time.Duration
}

// NewTool creates a capture_screenshot tool with the given capture timeout
// (0 uses DefaultTimeout).
func NewTool(timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tool{timeout: timeout}
}

func (t *Tool) Name() string { return "capture_screenshot" }

func (t *Tool) Description() string {
	return "Capture a screenshot of a public URL using a headless browser."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "Public http/https URL to render."},
			"delay_ms": {"type": "integer", "minimum": 0, "description": "Settle time before capture."}
		},
		"required": ["url"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args struct {
		URL     string `json:"url"`
		DelayMs int    `json:"delay_ms"`
	}
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}

	parsed, err := url.Parse(args.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "url must be an absolute http or https URL"), nil
	}
	if err := ssrf.ValidatePublicHostname(parsed.Hostname()); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, fmt.Sprintf("url host is not allowed: %v", err)), nil
	}

	delay := time.Duration(args.DelayMs) * time.Millisecond
	if delay > MaxDelay {
		delay = MaxDelay
	}

	captureCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(captureCtx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var buf []byte
	actions := []chromedp.Action{chromedp.Navigate(args.URL)}
	if delay > 0 {
		actions = append(actions, chromedp.Sleep(delay))
	}
	actions = append(actions, chromedp.CaptureScreenshot(&buf))

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("screenshot capture failed: %v", err)), nil
	}

	return models.ToolResult{
		Kind:   models.ToolResultScreenshot,
		URL:    args.URL,
		Base64: base64.StdEncoding.EncodeToString(buf),
	}, nil
}
