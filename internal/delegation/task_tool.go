package delegation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// taskArgs is Task's normalised argument shape. target_agent_id is the
// canonical field name; "agent" is accepted as an input alias only and
// never produced.
type taskArgs struct {
	TargetAgentID string `json:"target_agent_id"`
	Task          string `json:"task"`
}

// RunLookup resolves the AgentRun associated with a tool Request so the
// Task tool can find its own parent run without the delegation package
// importing the engine package.
type RunLookup func(runID string) (*models.AgentRun, bool)

// Tool implements the Task tool: {target_agent_id, task} -> Success{outcome_text}.
type Tool struct {
	manager *Manager
	lookup  RunLookup
}

// NewTool builds the Task tool bound to manager. lookup resolves a
// request's RunID to its AgentRun record (the engine owns run creation;
// this tool only needs to read it back).
func NewTool(manager *Manager, lookup RunLookup) *Tool {
	return &Tool{manager: manager, lookup: lookup}
}

func (t *Tool) Name() string        { return "Task" }
func (t *Tool) Description() string { return "Delegate a task to another named agent and block until it completes." }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"target_agent_id": {"type": "string", "description": "The agent to delegate to."},
			"task": {"type": "string", "description": "The task description for the delegate."}
		},
		"required": ["target_agent_id", "task"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(req.Args, &raw); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	args := taskArgs{}
	if v, ok := raw["target_agent_id"]; ok {
		_ = json.Unmarshal(v, &args.TargetAgentID)
	} else if v, ok := raw["agent"]; ok {
		_ = json.Unmarshal(v, &args.TargetAgentID)
	}
	if v, ok := raw["task"]; ok {
		_ = json.Unmarshal(v, &args.Task)
	}
	if args.TargetAgentID == "" || args.Task == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "target_agent_id and task are required"), nil
	}

	parent, ok := t.lookup(req.RunID)
	if !ok {
		return models.NewErrorResult(models.ErrorKindPolicy, "no active run for this tool call"), nil
	}

	outcome, err := t.manager.Spawn(ctx, parent, args.TargetAgentID, args.Task)
	if err != nil {
		if errors.Is(err, ErrDepthLimit) {
			return models.NewErrorResult(models.ErrorKindPolicy, "depth limit"), nil
		}
		return models.NewErrorResult(models.ErrorKindExternal, fmt.Sprintf("delegation failed: %v", err)), nil
	}
	return models.NewSuccessResult(outcome), nil
}
