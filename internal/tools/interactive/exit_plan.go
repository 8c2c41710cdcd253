package interactive

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// ExitPlanModeTool implements the ExitPlanMode tool: {summary, items[]} ->
// Success. It does no work itself — validating and echoing the plan back —
// the Turn Loop is what turns a successful call into a PlanProposed outcome.
type ExitPlanModeTool struct{}

// NewExitPlanModeTool creates the ExitPlanMode tool.
func NewExitPlanModeTool() *ExitPlanModeTool { return &ExitPlanModeTool{} }

func (t *ExitPlanModeTool) Name() string { return "ExitPlanMode" }
func (t *ExitPlanModeTool) Description() string {
	return "Propose a plan and end the run for review instead of continuing to execute."
}

func (t *ExitPlanModeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {"type": "string", "description": "One-line description of the proposed plan."},
			"items": {"type": "array", "items": {"type": "string"}, "description": "Ordered plan steps."}
		},
		"required": ["summary"]
	}`)
}

type exitPlanArgs struct {
	Summary string   `json:"summary"`
	Plan    string   `json:"plan"`
	Items   []string `json:"items"`
	Steps   []string `json:"steps"`
}

func (t *ExitPlanModeTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args exitPlanArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	summary := args.Summary
	if summary == "" {
		summary = args.Plan
	}
	if strings.TrimSpace(summary) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "summary is required"), nil
	}
	items := args.Items
	if len(items) == 0 {
		items = args.Steps
	}
	text := summary
	for _, item := range items {
		text += "\n- " + item
	}
	return models.NewSuccessResult(text), nil
}
