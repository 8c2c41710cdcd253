package policy

import (
	"slices"
	"testing"
)

func TestExpandGroups(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		contains []string
		excludes []string
	}{
		{
			name:     "expand single group",
			input:    []string{"group:fs"},
			contains: []string{"Read", "Write", "Edit", "Glob", "Grep"},
		},
		{
			name:     "expand runtime group",
			input:    []string{"group:runtime"},
			contains: []string{"Bash"},
		},
		{
			name:     "expand multiple groups",
			input:    []string{"group:fs", "group:web"},
			contains: []string{"Read", "Write", "WebSearch", "WebFetch"},
		},
		{
			name:     "pass through skill-defined tool names",
			input:    []string{"lint", "format_code"},
			contains: []string{"lint", "format_code"},
		},
		{
			name:     "mix of groups and tools",
			input:    []string{"group:delegation", "lint"},
			contains: []string{"Task", "lint"},
		},
		{
			name:     "deduplicate results",
			input:    []string{"group:fs", "Read", "Write"},
			contains: []string{"Read", "Write", "Edit", "Glob", "Grep"},
		},
		{
			name:     "empty input",
			input:    []string{},
			contains: []string{},
		},
		{
			name:     "unknown group passed through",
			input:    []string{"group:unknown"},
			contains: []string{"group:unknown"},
		},
		{
			name:     "readonly group",
			input:    []string{"group:readonly"},
			contains: []string{"Read", "WebSearch", "Grep"},
			excludes: []string{"Write", "Edit", "Bash"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandGroups(tt.input)

			for _, expected := range tt.contains {
				if !slices.Contains(result, expected) {
					t.Errorf("expected %q to be in result %v", expected, result)
				}
			}
			for _, excluded := range tt.excludes {
				if slices.Contains(result, excluded) {
					t.Errorf("expected %q to NOT be in result %v", excluded, result)
				}
			}
		})
	}
}

func TestExpandGroupsDeduplication(t *testing.T) {
	input := []string{"group:fs", "Read", "group:fs"}
	result := ExpandGroups(input)

	count := 0
	for _, tool := range result {
		if tool == "Read" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 'Read' to appear exactly once, got %d times in %v", count, result)
	}
}

func TestGetProfilePolicy(t *testing.T) {
	tests := []struct {
		name        string
		profile     Profile
		expectNil   bool
		expectAllow []string
	}{
		{
			name:        "coding profile",
			profile:     ProfileCoding,
			expectNil:   false,
			expectAllow: []string{"group:fs", "group:runtime"},
		},
		{
			name:        "readonly profile",
			profile:     ProfileReadonly,
			expectNil:   false,
			expectAllow: []string{"group:readonly"},
		},
		{
			name:        "full profile",
			profile:     ProfileFull,
			expectNil:   false,
			expectAllow: nil,
		},
		{
			name:      "unknown profile",
			profile:   Profile("nonexistent"),
			expectNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := GetProfilePolicy(tt.profile)

			if tt.expectNil {
				if policy != nil {
					t.Errorf("expected nil policy for profile %q", tt.profile)
				}
				return
			}
			if policy == nil {
				t.Fatalf("expected non-nil policy for profile %q", tt.profile)
			}
			for _, expected := range tt.expectAllow {
				if !slices.Contains(policy.Allow, expected) {
					t.Errorf("expected %q in allow list for profile %q, got %v", expected, tt.profile, policy.Allow)
				}
			}
		})
	}
}

func TestIsGroup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid fs group", "group:fs", true},
		{"valid runtime group", "group:runtime", true},
		{"valid web group", "group:web", true},
		{"valid readonly group", "group:readonly", true},
		{"invalid group", "group:unknown", false},
		{"regular tool name", "Read", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsGroup(tt.input); result != tt.expected {
				t.Errorf("IsGroup(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetGroupTools(t *testing.T) {
	tests := []struct {
		name       string
		group      string
		expectNil  bool
		expectLen  int
		expectTool string
	}{
		{
			name:       "get fs tools",
			group:      "group:fs",
			expectNil:  false,
			expectLen:  5,
			expectTool: "Read",
		},
		{
			name:       "get web tools",
			group:      "group:web",
			expectNil:  false,
			expectLen:  2,
			expectTool: "WebSearch",
		},
		{
			name:      "unknown group",
			group:     "group:nonexistent",
			expectNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetGroupTools(tt.group)

			if tt.expectNil {
				if result != nil {
					t.Errorf("expected nil for group %q", tt.group)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected non-nil result for group %q", tt.group)
			}
			if len(result) != tt.expectLen {
				t.Errorf("expected %d tools, got %d: %v", tt.expectLen, len(result), result)
			}
			if !slices.Contains(result, tt.expectTool) {
				t.Errorf("expected tool %q in result %v", tt.expectTool, result)
			}
		})
	}
}

func TestGetGroupToolsReturnsCopy(t *testing.T) {
	original := GetGroupTools("group:fs")
	if original == nil {
		t.Fatal("expected non-nil result for group:fs")
	}
	original[0] = "modified"

	fresh := GetGroupTools("group:fs")
	if fresh[0] == "modified" {
		t.Error("GetGroupTools should return a copy, not the original slice")
	}
}

func TestListGroups(t *testing.T) {
	groups := ListGroups()
	expectedGroups := []string{
		"group:fs", "group:runtime", "group:web", "group:readonly", "group:delegation",
	}
	for _, expected := range expectedGroups {
		if !slices.Contains(groups, expected) {
			t.Errorf("expected %q in group list %v", expected, groups)
		}
	}
}

func TestResolverWithGroups(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Allow: []string{"group:fs", "WebSearch"},
	}

	allowedTools := []string{"Read", "Write", "Edit", "Glob", "Grep", "WebSearch"}
	for _, tool := range allowedTools {
		if !resolver.IsAllowed(policy, tool) {
			t.Errorf("expected %q to be allowed", tool)
		}
	}

	deniedTools := []string{"Bash", "Task", "capture_screenshot"}
	for _, tool := range deniedTools {
		if resolver.IsAllowed(policy, tool) {
			t.Errorf("expected %q to be denied", tool)
		}
	}
}

func TestResolverWithProfile(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{Profile: ProfileCoding}

	allowedTools := []string{"Read", "Write", "Bash", "Task"}
	for _, tool := range allowedTools {
		if !resolver.IsAllowed(policy, tool) {
			t.Errorf("coding profile: expected %q to be allowed", tool)
		}
	}
}

func TestResolverWithProfileAndDeny(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Profile: ProfileFull,
		Deny:    []string{"Bash"},
	}

	if resolver.IsAllowed(policy, "Bash") {
		t.Error("expected Bash to be denied even with full profile")
	}
	if !resolver.IsAllowed(policy, "Read") {
		t.Error("expected Read to be allowed with full profile")
	}
}

func TestResolverWithGroupDeny(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Profile: ProfileFull,
		Deny:    []string{"group:runtime"},
	}

	if resolver.IsAllowed(policy, "Bash") {
		t.Error("expected Bash to be denied by group:runtime deny")
	}
	if !resolver.IsAllowed(policy, "Read") {
		t.Error("expected Read to be allowed")
	}
}

func TestToolGroupsConsistency(t *testing.T) {
	allTools := GetGroupTools("group:all")
	if allTools == nil {
		t.Fatal("group:all should exist")
	}

	groupsToCheck := []string{"group:fs", "group:runtime", "group:web", "group:delegation"}
	for _, group := range groupsToCheck {
		tools := GetGroupTools(group)
		for _, tool := range tools {
			if !slices.Contains(allTools, tool) {
				t.Errorf("group:all should contain %q from %s", tool, group)
			}
		}
	}
}

func TestReadonlyGroupNoModifyTools(t *testing.T) {
	readonlyTools := GetGroupTools("group:readonly")
	if readonlyTools == nil {
		t.Fatal("group:readonly should exist")
	}

	modifyTools := []string{"Write", "Edit", "Bash", "Task", "capture_screenshot"}
	for _, tool := range modifyTools {
		if slices.Contains(readonlyTools, tool) {
			t.Errorf("group:readonly should NOT contain %q", tool)
		}
	}

	readTools := []string{"Read", "WebSearch", "Grep"}
	for _, tool := range readTools {
		if !slices.Contains(readonlyTools, tool) {
			t.Errorf("group:readonly should contain %q", tool)
		}
	}
}

func TestCanonicalNameAliases(t *testing.T) {
	tests := map[string]string{
		"delegate_to_agent":  "Task",
		"web_search":         "WebSearch",
		"web_fetch":          "WebFetch",
		"bash":               "Bash",
		"capture_screenshot": "capture_screenshot",
		"lint":               "lint", // unknown names pass through unchanged
	}
	for in, want := range tests {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsKnownTool(t *testing.T) {
	for _, name := range []string{"Read", "web_search", "Bash"} {
		if !IsKnownTool(name) {
			t.Errorf("expected %q to be a known tool", name)
		}
	}
	if IsKnownTool("lint") {
		t.Error("expected skill-defined tool name to not be a known fixed-vocabulary tool")
	}
}
