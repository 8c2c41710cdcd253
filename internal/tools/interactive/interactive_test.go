package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

func TestAskUserReturnsAnswer(t *testing.T) {
	tool := NewAskUserTool(PrompterFunc(func(ctx context.Context, q string, choices []string) (string, error) {
		if q != "proceed?" {
			t.Errorf("question = %q", q)
		}
		return "yes", nil
	}))

	result, err := tool.Execute(context.Background(), toolexec.Request{
		Args: json.RawMessage(`{"question": "proceed?"}`),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError() {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Text != "yes" {
		t.Errorf("Text = %q, want yes", result.Text)
	}
}

func TestAskUserForbiddenAtDepth(t *testing.T) {
	tool := NewAskUserTool(PrompterFunc(func(ctx context.Context, q string, choices []string) (string, error) {
		t.Fatal("prompter should not be invoked for a delegated run")
		return "", nil
	}))

	result, err := tool.Execute(context.Background(), toolexec.Request{
		Args:  json.RawMessage(`{"question": "proceed?"}`),
		Depth: 1,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError() || result.ErrKind != models.ErrorKindPolicy {
		t.Fatalf("result = %+v, want policy error", result)
	}
}

func TestAskUserRequiresQuestion(t *testing.T) {
	tool := NewAskUserTool(PrompterFunc(func(ctx context.Context, q string, choices []string) (string, error) {
		return "unused", nil
	}))

	result, _ := tool.Execute(context.Background(), toolexec.Request{Args: json.RawMessage(`{}`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindPolicy {
		t.Fatalf("result = %+v, want policy error", result)
	}
}

func TestAskUserTimesOut(t *testing.T) {
	tool := &AskUserTool{
		timeout: 10 * time.Millisecond,
		prompter: PrompterFunc(func(ctx context.Context, q string, choices []string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	}

	result, err := tool.Execute(context.Background(), toolexec.Request{
		Args: json.RawMessage(`{"question": "proceed?"}`),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError() || result.ErrKind != models.ErrorKindTimeout {
		t.Fatalf("result = %+v, want timeout error", result)
	}
}

func TestExitPlanModeSucceeds(t *testing.T) {
	tool := NewExitPlanModeTool()
	result, err := tool.Execute(context.Background(), toolexec.Request{
		Args: json.RawMessage(`{"summary": "Refactor the parser", "items": ["split file", "add tests"]}`),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError() {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if !strings.Contains(result.Text, "Refactor the parser") || !strings.Contains(result.Text, "split file") {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestExitPlanModeAcceptsPlanAlias(t *testing.T) {
	tool := NewExitPlanModeTool()
	result, _ := tool.Execute(context.Background(), toolexec.Request{
		Args: json.RawMessage(`{"plan": "Ship it", "steps": ["tag release"]}`),
	})
	if result.IsError() {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if !strings.Contains(result.Text, "Ship it") {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestExitPlanModeRequiresSummary(t *testing.T) {
	tool := NewExitPlanModeTool()
	result, _ := tool.Execute(context.Background(), toolexec.Request{Args: json.RawMessage(`{}`)})
	if !result.IsError() || result.ErrKind != models.ErrorKindPolicy {
		t.Fatalf("result = %+v, want policy error", result)
	}
}

func TestStdinPrompterReadsLine(t *testing.T) {
	in := strings.NewReader("yes please\n")
	var out strings.Builder
	p := NewStdinPrompter(in, &out)

	answer, err := p.Prompt(context.Background(), "continue?", nil)
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if answer != "yes please" {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(out.String(), "continue?") {
		t.Errorf("expected question echoed to out, got %q", out.String())
	}
}

func TestStdinPrompterCancellation(t *testing.T) {
	in := blockingReader{}
	var out strings.Builder
	p := NewStdinPrompter(in, &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Prompt(ctx, "continue?", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}
