package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// Tool implements the Skill tool: {skill, args?} -> Success{instructions_text}.
// It looks up a skill by name among the skills the Manager discovered
// (~/.linggen/skills, the workspace's skills directory, and any extra or
// configured source directories) and returns its content.
type Tool struct {
	manager *Manager
}

// NewTool creates a Skill tool backed by manager.
func NewTool(manager *Manager) *Tool {
	return &Tool{manager: manager}
}

func (t *Tool) Name() string { return "Skill" }

func (t *Tool) Description() string {
	return "Look up a skill's instructions by name."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"skill": {"type": "string", "description": "Skill name to look up."},
			"args": {"type": "object", "description": "Optional arguments describing the task at hand."}
		},
		"required": ["skill"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var args struct {
		Skill string         `json:"skill"`
		Args  map[string]any `json:"args"`
	}
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Skill) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "skill is required"), nil
	}

	if _, ok := t.manager.GetEligible(args.Skill); !ok {
		if _, known := t.manager.GetSkill(args.Skill); known {
			return models.NewErrorResult(models.ErrorKindPolicy, fmt.Sprintf("skill %q is not eligible in this environment", args.Skill)), nil
		}
		return models.NewErrorResult(models.ErrorKindNotFound, fmt.Sprintf("skill %q not found", args.Skill)), nil
	}

	content, err := t.manager.LoadContent(args.Skill)
	if err != nil {
		return models.NewErrorResult(models.ErrorKindNotFound, err.Error()), nil
	}

	return models.NewSuccessResult(content), nil
}
