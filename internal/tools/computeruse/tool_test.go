package computeruse

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/linggen/linggen-agent/internal/toolexec"
)

func TestToolRejectsNonHTTPScheme(t *testing.T) {
	tool := NewTool(0)
	args, _ := json.Marshal(map[string]any{"url": "file:///etc/passwd"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError() {
		t.Fatal("expected a policy error for a non-http(s) scheme")
	}
}

func TestToolRejectsPrivateHost(t *testing.T) {
	tool := NewTool(0)
	for _, u := range []string{
		"http://localhost:8080/",
		"http://127.0.0.1/",
		"http://169.254.169.254/",
		"http://10.0.0.5/",
		"http://172.16.0.1/",
		"http://192.168.1.1/",
	} {
		args, _ := json.Marshal(map[string]any{"url": u})
		res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", u, err)
		}
		if !res.IsError() {
			t.Fatalf("expected %s to be rejected as a private/internal host", u)
		}
	}
}

func TestToolRejectsMalformedURL(t *testing.T) {
	tool := NewTool(0)
	args, _ := json.Marshal(map[string]any{"url": "not-a-url"})
	res, err := tool.Execute(context.Background(), toolexec.Request{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError() {
		t.Fatal("expected a policy error for a malformed URL")
	}
}
