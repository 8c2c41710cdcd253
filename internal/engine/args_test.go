package engine

import (
	"encoding/json"
	"testing"
)

func rawMap(t *testing.T, jsonStr string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		t.Fatalf("test fixture json invalid: %v", err)
	}
	return m
}

func TestNormalizeArgsAppliesAliases(t *testing.T) {
	in := rawMap(t, `{"command": "ls -la"}`)
	out := normalizeArgs("Bash", in)

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("normalizeArgs produced invalid json: %v", err)
	}
	if decoded["cmd"] != "ls -la" {
		t.Errorf("expected command aliased to cmd, got %+v", decoded)
	}
	if _, ok := decoded["command"]; ok {
		t.Error("expected alias key removed after normalization")
	}
}

func TestNormalizeArgsCanonicalKeyWins(t *testing.T) {
	in := rawMap(t, `{"old_string": "a", "old": "b"}`)
	out := normalizeArgs("Edit", in)

	var decoded map[string]any
	json.Unmarshal(out, &decoded)
	if decoded["old_string"] != "a" {
		t.Errorf("expected canonical old_string to win over alias, got %+v", decoded)
	}
}

func TestNormalizeArgsGlobsStringToArray(t *testing.T) {
	in := rawMap(t, `{"globs": "*.go"}`)
	out := normalizeArgs("Glob", in)

	var decoded struct {
		Globs []string `json:"globs"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(decoded.Globs) != 1 || decoded.Globs[0] != "*.go" {
		t.Errorf("expected globs wrapped into array, got %+v", decoded.Globs)
	}
}

func TestNormalizeArgsGlobsArrayUnchanged(t *testing.T) {
	in := rawMap(t, `{"globs": ["*.go", "*.md"]}`)
	out := normalizeArgs("Glob", in)

	var decoded struct {
		Globs []string `json:"globs"`
	}
	json.Unmarshal(out, &decoded)
	if len(decoded.Globs) != 2 {
		t.Errorf("expected array globs left as-is, got %+v", decoded.Globs)
	}
}

func TestNormalizeArgsCoercesNumericString(t *testing.T) {
	in := rawMap(t, `{"max_results": "50"}`)
	out := normalizeArgs("Grep", in)

	var decoded struct {
		MaxResults int `json:"max_results"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("expected numeric coercion to produce a JSON number: %v", err)
	}
	if decoded.MaxResults != 50 {
		t.Errorf("max_results = %d, want 50", decoded.MaxResults)
	}
}

func TestNormalizeArgsLeavesNonNumericStringAlone(t *testing.T) {
	in := rawMap(t, `{"max_results": "all"}`)
	out := normalizeArgs("Grep", in)

	var decoded map[string]any
	json.Unmarshal(out, &decoded)
	if decoded["max_results"] != "all" {
		t.Errorf("expected non-numeric string left untouched, got %+v", decoded)
	}
}
