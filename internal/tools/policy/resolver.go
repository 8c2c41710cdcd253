package policy

import (
	"sync"
)

// Resolver resolves an agent's tool access by evaluating its policy
// (profile, groups, explicit allow/deny) against a requested tool name.
// It also tracks dynamically registered skill-defined tool names so they
// can be referenced by name in an Allow list without polluting the fixed
// canonical vocabulary.
type Resolver struct {
	mu         sync.RWMutex
	groups     map[string][]string
	skillTools map[string]bool // dynamically registered skill-defined tool names
}

// Decision explains why a tool was allowed or denied.
type Decision struct {
	Allowed bool
	Tool    string
	Reason  string
}

// NewResolver creates a resolver seeded with the default tool groups.
func NewResolver() *Resolver {
	groups := make(map[string][]string, len(ToolGroups))
	for name, tools := range ToolGroups {
		groups[name] = tools
	}
	return &Resolver{
		groups:     groups,
		skillTools: make(map[string]bool),
	}
}

// AddGroup adds or replaces a custom tool group.
func (r *Resolver) AddGroup(name string, tools []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = tools
}

// RegisterSkillTool records a skill-defined tool name as known, so policies
// can allow it explicitly (e.g. Allow: []string{"group:coding", "lint"}).
func (r *Resolver) RegisterSkillTool(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skillTools[name] = true
}

// UnregisterSkillTool removes a skill-defined tool name (skill unloaded).
func (r *Resolver) UnregisterSkillTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.skillTools, name)
}

// ExpandGroups expands group references in items to their constituent
// canonical tool names, deduplicated.
func (r *Resolver) ExpandGroups(items []string) []string {
	var result []string
	seen := make(map[string]bool)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range items {
		if tools, ok := r.groups[item]; ok {
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

// IsAllowed reports whether toolName is allowed by policy.
func (r *Resolver) IsAllowed(policy *Policy, toolName string) bool {
	return r.Decide(policy, toolName).Allowed
}

// Decide returns an allow/deny decision with a reason, evaluating against
// the canonicalised tool name.
func (r *Resolver) Decide(policy *Policy, toolName string) Decision {
	normalized := CanonicalName(toolName)
	decision := Decision{Allowed: false, Tool: normalized, Reason: "no matching allow rule"}

	if policy == nil {
		decision.Reason = "no policy configured"
		return decision
	}

	var allowed []string
	if policy.Profile != "" {
		if profilePolicy, ok := ToolProfiles[policy.Profile]; ok && profilePolicy != nil {
			allowed = r.ExpandGroups(profilePolicy.Allow)
		}
	}
	if len(policy.Allow) > 0 {
		allowed = append(allowed, r.ExpandGroups(policy.Allow)...)
	}

	denied := r.ExpandGroups(policy.Deny)
	for _, d := range denied {
		if matchToolPattern(d, normalized) {
			decision.Reason = "denied by rule: " + d
			return decision
		}
	}

	if policy.Profile == ProfileFull {
		decision.Allowed = true
		decision.Reason = "allowed by profile full"
		return decision
	}

	for _, a := range allowed {
		if matchToolPattern(a, normalized) {
			decision.Allowed = true
			decision.Reason = "allowed by rule: " + a
			return decision
		}
	}

	return decision
}

// matchToolPattern reports whether pattern matches toolName. Supports the
// universal wildcard "*" and exact match; group references are expanded
// before matching ever sees them.
func matchToolPattern(pattern, toolName string) bool {
	if pattern == "*" {
		return true
	}
	return pattern == toolName
}

// FilterAllowed filters tools to the subset allowed by policy, in the
// order given. Useful for building the prompt's tool vocabulary listing.
func (r *Resolver) FilterAllowed(policy *Policy, tools []string) []string {
	var result []string
	for _, tool := range tools {
		if r.IsAllowed(policy, tool) {
			result = append(result, tool)
		}
	}
	return result
}

// GetDenied returns policy's denied tools with groups expanded.
func (r *Resolver) GetDenied(policy *Policy) []string {
	if policy == nil {
		return nil
	}
	return r.ExpandGroups(policy.Deny)
}

// GetAllowed returns policy's allowed tools (profile defaults plus
// explicit allows) with groups expanded.
func (r *Resolver) GetAllowed(policy *Policy) []string {
	if policy == nil {
		return nil
	}
	var allowed []string
	if policy.Profile != "" {
		if profilePolicy, ok := ToolProfiles[policy.Profile]; ok && profilePolicy != nil {
			allowed = r.ExpandGroups(profilePolicy.Allow)
		}
	}
	if len(policy.Allow) > 0 {
		allowed = append(allowed, r.ExpandGroups(policy.Allow)...)
	}
	return allowed
}

// AllowedNames resolves a policy against the registry's known tool names
// (the fixed vocabulary plus any registered skill-defined tools) and
// returns the subset permitted — the slice toolexec.Registry.Filtered
// expects as its capability set.
func (r *Resolver) AllowedNames(policy *Policy, registryNames []string) []string {
	return r.FilterAllowed(policy, registryNames)
}
