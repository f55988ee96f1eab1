package scanner

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter excludes paths matching any of a set of doublestar globs.
type Filter struct {
	patterns []string
}

// NewFilter validates the exclusion globs.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Kind: "exclude", Pattern: p, Err: doublestar.ErrBadPattern}
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// IsExcluded reports whether path, relative to the scan root, matches an
// exclusion glob. Directories are matched both as "dir" and "dir/" so that
// patterns like "**/node_modules/**" prune the directory itself.
func (f *Filter) IsExcluded(path string) bool {
	p := filepath.ToSlash(filepath.Clean(path))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "" {
		return false
	}

	for _, pattern := range f.patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, p+"/"); ok {
			return true
		}
	}
	return false
}
