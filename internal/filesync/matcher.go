package filesync

import (
	"path/filepath"
	"strings"
)

// Matcher applies ignore and include filtering to paths relative to the
// indexed root. Ignore patterns use filepath.Match globs; a pattern ending
// in "/" matches a directory and everything beneath it.
type Matcher struct {
	ignore  []string
	include map[string]struct{} // lowercased extensions without dot; empty means all
}

// NewMatcher builds a matcher from ordered ignore patterns and an
// include-extension set.
func NewMatcher(ignorePatterns, includeExtensions []string) *Matcher {
	include := make(map[string]struct{}, len(includeExtensions))
	for _, ext := range includeExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			include[ext] = struct{}{}
		}
	}
	return &Matcher{ignore: ignorePatterns, include: include}
}

// IgnoredDir reports whether the directory at rel should be skipped
// entirely, including everything beneath it.
func (m *Matcher) IgnoredDir(rel string) bool {
	rel = normalize(rel)
	for _, pattern := range m.ignore {
		p := strings.TrimSuffix(pattern, "/")
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		// A directory pattern also prunes nested directories beneath it.
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(rel+"/", p+"/") {
			return true
		}
	}
	return false
}

// IgnoredFile reports whether the file at rel matches an ignore pattern.
func (m *Matcher) IgnoredFile(rel string) bool {
	rel = normalize(rel)
	for _, pattern := range m.ignore {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(rel, pattern) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		// Patterns without a separator also match the base name, so "*.log"
		// ignores logs at any depth.
		if !strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
				return true
			}
		}
	}
	return false
}

// IncludeFile reports whether the file's extension passes the include
// filter. An empty include set accepts every extension.
func (m *Matcher) IncludeFile(rel string) bool {
	if len(m.include) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
	_, ok := m.include[ext]
	return ok
}

func normalize(rel string) string {
	return strings.ReplaceAll(rel, "\\", "/")
}
