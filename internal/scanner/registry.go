// Package scanner finds TODO comments in a source tree and classifies them.
//
// A Registry holds the compiled comment and priority patterns, a Filter
// decides which paths are never opened, and a Scanner walks a directory,
// scans each candidate file line by line and returns a deterministically
// ordered list of records.
package scanner

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// DefaultExtensionKey marks the fallback comment pattern.
const DefaultExtensionKey = "default"

// PatternError reports configuration that cannot be compiled. It is fatal:
// without valid patterns classification is undefined.
type PatternError struct {
	// Kind is "comment", "priority", "file" or "exclude"
	Kind string
	// Key is the extension group or priority tier the pattern belongs to
	Key     string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid %s pattern %q for %q: %v", e.Kind, e.Pattern, e.Key, e.Err)
	}
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

type commentRule struct {
	extensions map[string]bool
	pattern    *regexp.Regexp
}

type priorityRule struct {
	priority models.Priority
	patterns []*regexp.Regexp
}

// Registry is the compiled form of a ScanConfig. It is safe for concurrent
// use once built.
type Registry struct {
	filePatterns []string
	comments     []commentRule
	fallback     *regexp.Regexp
	priorities   []priorityRule
}

// NewRegistry compiles the file, comment and priority patterns of cfg.
func NewRegistry(cfg config.ScanConfig) (*Registry, error) {
	r := &Registry{}

	for _, p := range cfg.FilePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Kind: "file", Pattern: p, Err: doublestar.ErrBadPattern}
		}
		r.filePatterns = append(r.filePatterns, p)
	}

	for _, cp := range cfg.CommentPatterns {
		re, err := compileCommentPattern(cp.Extensions, cp.Pattern)
		if err != nil {
			return nil, err
		}

		if strings.TrimSpace(cp.Extensions) == DefaultExtensionKey {
			if r.fallback == nil {
				r.fallback = re
			}
			continue
		}

		exts := make(map[string]bool)
		for _, ext := range strings.Split(cp.Extensions, "|") {
			ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
			if ext != "" {
				exts[ext] = true
			}
		}
		if len(exts) == 0 {
			return nil, &PatternError{Kind: "comment", Key: cp.Extensions, Pattern: cp.Pattern,
				Err: fmt.Errorf("no extensions given")}
		}
		r.comments = append(r.comments, commentRule{extensions: exts, pattern: re})
	}

	if r.fallback == nil {
		re, err := compileCommentPattern(DefaultExtensionKey, config.DefaultCommentPattern)
		if err != nil {
			return nil, err
		}
		r.fallback = re
	}

	for key := range cfg.PriorityPatterns {
		p := models.Priority(strings.ToLower(key))
		if !p.Valid() || p == models.PriorityNormal {
			return nil, &PatternError{Kind: "priority", Key: key,
				Err: fmt.Errorf("tier must be one of critical, high, medium, low")}
		}
	}

	for _, tier := range models.Priorities() {
		if tier == models.PriorityNormal {
			continue
		}
		rule := priorityRule{priority: tier}
		for _, expr := range priorityPatternsFor(cfg.PriorityPatterns, tier) {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, &PatternError{Kind: "priority", Key: string(tier), Pattern: expr, Err: err}
			}
			rule.patterns = append(rule.patterns, re)
		}
		r.priorities = append(r.priorities, rule)
	}

	return r, nil
}

func compileCommentPattern(key, expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &PatternError{Kind: "comment", Key: key, Pattern: expr, Err: err}
	}
	if re.NumSubexp() != 2 {
		return nil, &PatternError{Kind: "comment", Key: key, Pattern: expr,
			Err: fmt.Errorf("expected 2 capture groups (assignee, text), got %d", re.NumSubexp())}
	}
	return re, nil
}

// priorityPatternsFor tolerates keys in any case, since viper lower-cases
// them but hand-built configs may not.
func priorityPatternsFor(patterns map[string][]string, tier models.Priority) []string {
	var out []string
	for key, exprs := range patterns {
		if models.Priority(strings.ToLower(key)) == tier {
			out = append(out, exprs...)
		}
	}
	return out
}

// CommentPattern returns the TODO regex for a file extension (without the
// dot). Groups are checked in configuration order; the default pattern is
// used when none lists the extension.
func (r *Registry) CommentPattern(ext string) *regexp.Regexp {
	for _, rule := range r.comments {
		if rule.extensions[ext] {
			return rule.pattern
		}
	}
	return r.fallback
}

// MatchesFile reports whether a slash-separated path relative to the scan
// root is a scan candidate. Patterns without a "/" match the base name at
// any depth.
func (r *Registry) MatchesFile(rel string) bool {
	rel = path.Clean(rel)
	base := path.Base(rel)
	for _, p := range r.filePatterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
