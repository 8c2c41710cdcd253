package skills

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

func newTestManager(t *testing.T, skillBody string) *Manager {
	t.Helper()
	workspace := t.TempDir()
	skillsDir := filepath.Join(workspace, "skills", "alpha")
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		t.Fatalf("mkdir skill dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillsDir, SkillFilename), []byte(skillBody), 0o644); err != nil {
		t.Fatalf("write skill file: %v", err)
	}

	manager, err := NewManager(&SkillsConfig{}, workspace, nil)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })
	if err := manager.Discover(context.Background()); err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	return manager
}

func TestSkillToolReturnsInstructions(t *testing.T) {
	manager := newTestManager(t, "---\nname: alpha\ndescription: test skill\n---\n# Alpha\nDo the thing.\n")
	tool := NewTool(manager)

	args, _ := json.Marshal(map[string]any{"skill": "alpha"})
	result, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError() {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if !strings.Contains(result.Text, "Do the thing") {
		t.Fatalf("expected skill content in result, got %q", result.Text)
	}
}

func TestSkillToolNotFound(t *testing.T) {
	manager := newTestManager(t, "---\nname: alpha\ndescription: test skill\n---\n# Alpha\n")
	tool := NewTool(manager)

	args, _ := json.Marshal(map[string]any{"skill": "missing"})
	result, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError() || result.ErrKind != models.ErrorKindNotFound {
		t.Fatalf("expected a not_found error, got %+v", result)
	}
}

func TestSkillToolRequiresSkillName(t *testing.T) {
	manager := newTestManager(t, "---\nname: alpha\ndescription: test skill\n---\n# Alpha\n")
	tool := NewTool(manager)

	result, err := tool.Execute(context.Background(), toolexec.Request{Args: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError() {
		t.Fatal("expected a policy error for a missing skill name")
	}
}
