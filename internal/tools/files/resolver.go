package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves and validates workspace-relative paths. An absolute path
// that falls inside MemoryRoot (the agent's persistent memory tree, outside
// the workspace) is accepted as-is rather than rejected as an escape.
type Resolver struct {
	Root       string
	MemoryRoot string
}

// inMemoryTree reports whether abs (already filepath.Clean'd) falls inside
// the designated memory tree.
func (r Resolver) inMemoryTree(abs string) bool {
	memRoot := strings.TrimSpace(r.MemoryRoot)
	if memRoot == "" {
		return false
	}
	memAbs, err := filepath.Abs(memRoot)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(memAbs, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

// rootAbs returns the absolute workspace root, defaulting to ".".
func (r Resolver) rootAbs() string {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

// Resolve returns an absolute, cleaned path within the workspace root.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if filepath.IsAbs(clean) && r.inMemoryTree(targetAbs) {
		return targetAbs, nil
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}
