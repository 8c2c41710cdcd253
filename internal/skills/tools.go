package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	exectools "github.com/linggen/linggen-agent/internal/tools/exec"
	"github.com/linggen/linggen-agent/internal/tools/security"
	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// BuildSkillTools creates executable tools from a skill's declared tool
// specs. workspaceRoot is used as the working directory unless the skill's
// metadata sets cwd: skill, in which case the skill's own directory is used.
func BuildSkillTools(skill *SkillEntry, workspaceRoot string) []toolexec.Tool {
	if skill == nil || skill.Metadata == nil || len(skill.Metadata.Tools) == 0 {
		return nil
	}

	dir := workspaceRoot
	if skill.Metadata.Cwd == "skill" {
		dir = skill.Path
	}

	tools := make([]toolexec.Tool, 0, len(skill.Metadata.Tools))
	for _, spec := range skill.Metadata.Tools {
		if strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.CmdTemplate) == "" {
			continue
		}
		tools = append(tools, &skillTool{skill: skill, spec: spec, dir: dir})
	}
	return tools
}

// skillTool executes a skill-defined {name, cmd_template, args_schema,
// timeout_ms} tool spec by rendering its command template and running it
// with Bash's shell-allowlist and timeout/progress-streaming policy.
type skillTool struct {
	skill *SkillEntry
	spec  SkillToolSpec
	dir   string
}

func (t *skillTool) Name() string { return t.spec.Name }

func (t *skillTool) Description() string {
	if t.spec.Description != "" {
		return t.spec.Description
	}
	return "Skill tool: " + t.spec.Name
}

func (t *skillTool) Schema() json.RawMessage {
	if t.spec.ArgsSchema == nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	payload, err := json.Marshal(t.spec.ArgsSchema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *skillTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var rawArgs map[string]any
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &rawArgs); err != nil {
			return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
		}
	}

	cmd := renderTemplate(t.spec.CmdTemplate, t.skill.Path, rawArgs)

	if err := security.ValidateCommand(cmd); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, err.Error()), nil
	}

	timeout := exectools.DefaultTimeout
	if t.spec.TimeoutMs > 0 {
		timeout = time.Duration(t.spec.TimeoutMs) * time.Millisecond
	}

	return exectools.Run(ctx, exectools.RunSpec{
		Cmd:      cmd,
		Dir:      t.dir,
		Timeout:  timeout,
		ToolName: t.spec.Name,
	}, req), nil
}

// renderTemplate substitutes $SKILL_DIR and {{arg}} placeholders in a
// cmd_template. Each argument value is single-quote shell escaped, with
// embedded single quotes rewritten as '\''.
func renderTemplate(template, skillDir string, args map[string]any) string {
	rendered := strings.ReplaceAll(template, "$SKILL_DIR", skillDir)
	for key, value := range args {
		placeholder := fmt.Sprintf("{{%s}}", key)
		rendered = strings.ReplaceAll(rendered, placeholder, shellQuote(fmt.Sprintf("%v", value)))
	}
	return rendered
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
