// Package policy provides tool authorization and access control for agents.
// It defines capability profiles, groups, and the canonical tool-name
// mapping the turn loop uses when parsing a model's tool calls.
package policy

import (
	"strings"
)

// Profile defines a pre-configured capability set for an agent.
type Profile string

const (
	// ProfileMinimal allows no tools beyond the interactive ones.
	ProfileMinimal Profile = "minimal"

	// ProfileReadonly allows only tools that observe, never mutate.
	ProfileReadonly Profile = "readonly"

	// ProfileCoding allows filesystem, shell, and web tools — the default
	// capability set for a coding agent.
	ProfileCoding Profile = "coding"

	// ProfileFull allows every canonical tool (except explicit denies).
	ProfileFull Profile = "full"
)

// Policy defines an agent's capability set: which tool names it may call,
// combining a base profile with explicit allow/deny lists. Deny always
// takes precedence over allow.
type Policy struct {
	// Profile is the pre-configured base capability set.
	Profile Profile `json:"profile,omitempty" yaml:"profile"`

	// Allow explicitly allows these tools or groups (in addition to profile).
	Allow []string `json:"allow,omitempty" yaml:"allow"`

	// Deny explicitly denies these tools or groups (overrides allow).
	Deny []string `json:"deny,omitempty" yaml:"deny"`
}

// CanonicalTools is the fixed tool vocabulary the executor registers.
// Skill-defined tools are registered dynamically alongside these under
// their own names and are authorized by explicit Allow entries rather
// than by appearing in this list.
var CanonicalTools = []string{
	"Glob", "Read", "Grep", "Write", "Edit", "Bash",
	"Task", "WebSearch", "WebFetch", "Skill",
	"AskUser", "ExitPlanMode", "capture_screenshot",
}

// ToolAliases maps alternative names a model may emit to their canonical
// form, e.g. delegate_to_agent -> Task, web_search -> WebSearch. A name not
// in this map passes through CanonicalName unchanged.
var ToolAliases = map[string]string{
	"delegate_to_agent":  "Task",
	"delegate":           "Task",
	"spawn_agent":        "Task",
	"task":               "Task",
	"web_search":         "WebSearch",
	"websearch":          "WebSearch",
	"web_fetch":          "WebFetch",
	"webfetch":           "WebFetch",
	"fetch_url":          "WebFetch",
	"glob":               "Glob",
	"find_files":         "Glob",
	"read":               "Read",
	"read_file":          "Read",
	"grep":               "Grep",
	"search":             "Grep",
	"write":              "Write",
	"write_file":         "Write",
	"edit":               "Edit",
	"edit_file":          "Edit",
	"bash":               "Bash",
	"shell":              "Bash",
	"exec":               "Bash",
	"run_command":        "Bash",
	"skill":              "Skill",
	"ask_user":           "AskUser",
	"askuser":            "AskUser",
	"exit_plan_mode":     "ExitPlanMode",
	"exitplanmode":       "ExitPlanMode",
	"screenshot":         "capture_screenshot",
	"capture_screenshot": "capture_screenshot",
}

// CanonicalName resolves a tool name a model emitted to its canonical form.
// Names already in canonical form (including dynamically registered
// skill-defined tool names, which are case-sensitive and never aliased)
// pass through unchanged.
func CanonicalName(name string) string {
	trimmed := strings.TrimSpace(name)
	if canonical, ok := ToolAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// IsKnownTool reports whether name (after canonicalisation) is one of the
// fixed vocabulary tools. Skill-defined tools are not "known" in this sense
// — callers must check the live registry for those.
func IsKnownTool(name string) bool {
	canonical := CanonicalName(name)
	for _, t := range CanonicalTools {
		if t == canonical {
			return true
		}
	}
	return false
}

// NewPolicy creates a new policy with the given profile as its base.
func NewPolicy(profile Profile) *Policy {
	return &Policy{Profile: profile}
}

// WithAllow adds tools or groups to the allow list and returns the policy
// for chaining.
func (p *Policy) WithAllow(tools ...string) *Policy {
	p.Allow = append(p.Allow, tools...)
	return p
}

// WithDeny adds tools or groups to the deny list and returns the policy
// for chaining.
func (p *Policy) WithDeny(tools ...string) *Policy {
	p.Deny = append(p.Deny, tools...)
	return p
}

// Merge combines multiple policies into one. Later policies' profile wins;
// allow/deny lists accumulate.
func Merge(policies ...*Policy) *Policy {
	result := &Policy{}
	for _, p := range policies {
		if p == nil {
			continue
		}
		if p.Profile != "" {
			result.Profile = p.Profile
		}
		result.Allow = append(result.Allow, p.Allow...)
		result.Deny = append(result.Deny, p.Deny...)
	}
	return result
}
