// Package interactive implements the two "terminate-ish" tools in the fixed
// vocabulary that do not operate on the workspace: AskUser, which blocks for
// a human answer, and ExitPlanMode, which signals the Turn Loop to end the
// run with a proposed plan rather than a completed answer.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// DefaultAskUserTimeout is the single-shot wait budget for a human answer:
// AskUser is single-shot only in the root agent, with a 5-minute timeout.
const DefaultAskUserTimeout = 5 * time.Minute

// Prompter surfaces a question to whatever is on the other end of the
// running agent (a terminal, a future HTTP boundary) and returns the raw
// answer text. Implementations must respect ctx cancellation.
type Prompter interface {
	Prompt(ctx context.Context, question string, choices []string) (string, error)
}

// PrompterFunc adapts a function to a Prompter.
type PrompterFunc func(ctx context.Context, question string, choices []string) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, question string, choices []string) (string, error) {
	return f(ctx, question, choices)
}

// AskUserTool implements the AskUser tool: {question, choices?} -> Success,
// blocking on Prompter until an answer arrives, the timeout elapses, or the
// run is cancelled. Forbidden outside the root agent (depth > 0), per
// §4.3's delegation policy.
type AskUserTool struct {
	prompter Prompter
	timeout  time.Duration
}

// NewAskUserTool creates an AskUser tool that asks questions via prompter.
func NewAskUserTool(prompter Prompter) *AskUserTool {
	return &AskUserTool{prompter: prompter, timeout: DefaultAskUserTimeout}
}

func (t *AskUserTool) Name() string { return "AskUser" }
func (t *AskUserTool) Description() string {
	return "Ask the human operating this run a question and block for their answer. Root agent only."
}

func (t *AskUserTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "The question to put to the user."},
			"choices": {"type": "array", "items": {"type": "string"}, "description": "Optional fixed set of acceptable answers."}
		},
		"required": ["question"]
	}`)
}

type askUserArgs struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

func (t *AskUserTool) Execute(ctx context.Context, req toolexec.Request) (models.ToolResult, error) {
	if req.Depth > 0 {
		return models.NewErrorResult(models.ErrorKindPolicy, "AskUser is forbidden in delegated (non-root) runs"), nil
	}

	var args askUserArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return models.NewErrorResult(models.ErrorKindPolicy, "invalid args: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return models.NewErrorResult(models.ErrorKindPolicy, "question is required"), nil
	}
	if t.prompter == nil {
		return models.NewErrorResult(models.ErrorKindExternal, "no prompter configured for this run"), nil
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = DefaultAskUserTimeout
	}
	askCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := t.prompter.Prompt(askCtx, args.Question, args.Choices)
	if err != nil {
		if askCtx.Err() != nil {
			return models.NewErrorResult(models.ErrorKindTimeout, fmt.Sprintf("no answer within %s", timeout)), nil
		}
		return models.NewErrorResult(models.ErrorKindExternal, err.Error()), nil
	}
	return models.NewSuccessResult(answer), nil
}
