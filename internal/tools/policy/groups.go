package policy

// ToolGroups defines named groups of canonical tool names for convenient
// bulk capability grants. Group names use the "group:" prefix so they
// cannot collide with a real tool name (all canonical names are capitalised
// except capture_screenshot, which is not a group).
var ToolGroups = map[string][]string{
	// Filesystem tools - read/write/modify files.
	"group:fs": {"Glob", "Read", "Grep", "Write", "Edit"},

	// Read-only filesystem tools.
	"group:fs-readonly": {"Glob", "Read", "Grep"},

	// Shell execution.
	"group:runtime": {"Bash"},

	// Delegation to child agent runs.
	"group:delegation": {"Task"},

	// Web research tools.
	"group:web": {"WebSearch", "WebFetch"},

	// Browser automation.
	"group:ui": {"capture_screenshot"},

	// Skill lookup (not skill-defined tools themselves, which are
	// registered dynamically and authorized by their own names).
	"group:skills": {"Skill"},

	// Interactive tools that block for user input or end the turn loop
	// with a plan. AskUser is root-run only; the AskUser tool rejects
	// calls from child runs (Depth > 0) regardless of capability set.
	"group:interactive": {"AskUser", "ExitPlanMode"},

	// All canonical tools.
	"group:all": {
		"Glob", "Read", "Grep", "Write", "Edit", "Bash",
		"Task", "WebSearch", "WebFetch", "Skill",
		"AskUser", "ExitPlanMode", "capture_screenshot",
	},

	// Tools that only observe and never mutate the workspace, shell, or
	// run tree.
	"group:readonly": {"Glob", "Read", "Grep", "WebSearch", "WebFetch", "Skill"},
}

// ToolProfiles defines the default allow lists for each profile.
var ToolProfiles = map[Profile]*Policy{
	ProfileMinimal: {
		Profile: ProfileMinimal,
		Allow:   []string{"group:interactive"},
	},
	ProfileReadonly: {
		Profile: ProfileReadonly,
		Allow:   []string{"group:readonly"},
	},
	ProfileCoding: {
		Profile: ProfileCoding,
		Allow: []string{
			"group:fs", "group:runtime", "group:web", "group:skills", "group:delegation",
		},
	},
	ProfileFull: {
		Profile: ProfileFull,
		// Full profile allows everything not explicitly denied; see Resolver.Decide.
	},
}

// ExpandGroups expands group references (e.g. "group:fs") in a tool list to
// their constituent canonical tool names. Non-group items (plain tool
// names, including skill-defined tool names) pass through unchanged.
// Results are deduplicated, preserving first-seen order.
func ExpandGroups(items []string) []string {
	var result []string
	seen := make(map[string]bool)

	for _, item := range items {
		if tools, ok := ToolGroups[item]; ok {
			for _, tool := range tools {
				if !seen[tool] {
					seen[tool] = true
					result = append(result, tool)
				}
			}
			continue
		}
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}

// GetProfilePolicy returns the default policy for a named profile, or nil
// if the profile is unknown.
func GetProfilePolicy(profile Profile) *Policy {
	return ToolProfiles[profile]
}

// ListGroups returns all available group names.
func ListGroups() []string {
	groups := make([]string, 0, len(ToolGroups))
	for name := range ToolGroups {
		groups = append(groups, name)
	}
	return groups
}

// IsGroup returns true if name is a valid group reference.
func IsGroup(name string) bool {
	_, ok := ToolGroups[name]
	return ok
}

// GetGroupTools returns a copy of the tools in a group, or nil if the group
// doesn't exist.
func GetGroupTools(name string) []string {
	tools, ok := ToolGroups[name]
	if !ok {
		return nil
	}
	result := make([]string, len(tools))
	copy(result, tools)
	return result
}
