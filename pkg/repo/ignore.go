package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreChecker decides whether a repo-relative path should be excluded
// from add/status. Pattern syntax is deliberately narrow: an exact path or
// filename, a trailing "/" to anchor a directory (and everything under
// it), and a "*" wildcard at the start and/or end of a pattern (a "*"
// anywhere else is matched literally). A pattern without "/" is matched
// against the path's last element, one with "/" against the whole path.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string // without trailing slash
	dirOnly  bool
	hasSlash bool
}

// NewIgnoreChecker builds a checker for repoRoot. ".kitcat" is always
// ignored; if a ".kitcatignore" file exists at the root, its patterns are
// appended.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{
		patterns: []ignorePattern{{pattern: gotDirName, dirOnly: true}},
	}

	f, err := os.Open(filepath.Join(repoRoot, ".kitcatignore"))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parseIgnoreLine(scanner.Text()); ok {
			ic.patterns = append(ic.patterns, p)
		}
	}
	return ic
}

func parseIgnoreLine(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	p := ignorePattern{}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.hasSlash = strings.Contains(line, "/")
	p.pattern = line
	return p, true
}

// IsIgnored reports whether path (repo-relative, forward-slashed) matches
// any pattern, either directly or as a descendant of a directory pattern.
func (ic *IgnoreChecker) IsIgnored(path string) bool {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)

	for _, p := range ic.patterns {
		target := base
		if p.hasSlash {
			target = path
		}
		if matchSegment(p.pattern, target) {
			return true
		}
		if p.dirOnly && (path == p.pattern || strings.HasPrefix(path, p.pattern+"/")) {
			return true
		}
	}
	return false
}

// matchSegment matches target against pattern, where pattern may carry a
// "*" wildcard at its start, its end, or both.
func matchSegment(pattern, target string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(target, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(target, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(target, pattern[:len(pattern)-1])
	default:
		return pattern == target
	}
}
