package changetracker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnorePatterns are paths that are never tracked
var DefaultIgnorePatterns = []string{
	"**/.agentdiff/checkpoints/**",
	"**/.git/**",
}

// normalizePath cleans path and converts the OS separator to forward
// slashes. A backslash is only a separator where the OS says so.
func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

type pathFilter struct {
	patterns []string
}

func newPathFilter(patterns []string) (*pathFilter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &pathFilter{patterns: patterns}, nil
}

// trackable reports whether a normalized path may be tracked
func (f *pathFilter) trackable(path string) bool {
	rel := strings.TrimPrefix(path, "/")
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}
