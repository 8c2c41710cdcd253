package files

import (
	"os"
	"path/filepath"
	"strings"
)

// gitignoreSet is a minimal, hand-rolled .gitignore matcher covering the
// common cases (plain names, trailing-slash directory patterns, leading
// "**/" and "/" anchors) — enough to honour Glob's standard-ignore-rules
// behavior without pulling in a third-party gitignore parser.
type gitignoreSet struct {
	patterns []string
}

func loadGitignore(root string) gitignoreSet {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return gitignoreSet{}
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return gitignoreSet{patterns: out}
}

// matches reports whether rel (a workspace-relative, slash-separated path)
// is ignored. isDir indicates whether rel names a directory, so directory-
// only patterns ("build/") only match directories.
func (g gitignoreSet) matches(rel string, isDir bool) bool {
	base := filepath.Base(rel)
	for _, pattern := range g.patterns {
		p := pattern
		dirOnly := strings.HasSuffix(p, "/")
		if dirOnly {
			p = strings.TrimSuffix(p, "/")
		}
		if dirOnly && !isDir {
			continue
		}
		anchored := strings.HasPrefix(p, "/")
		p = strings.TrimPrefix(p, "/")
		p = strings.TrimPrefix(p, "**/")

		if anchored {
			if ok, _ := filepath.Match(p, rel); ok {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
	}
	return false
}
