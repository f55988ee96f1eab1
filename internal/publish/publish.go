// Package publish files scanned TODO records into an issue tracker. Each
// record carries a stable fingerprint in its issue body so that repeated runs
// only create issues for TODOs that have not been filed before.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/report"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// Tracker is an issue tracker that TODOs can be filed into.
type Tracker interface {
	// Name identifies the tracker in logs, e.g. "github owner/repo".
	Name() string

	// Existing returns the fingerprints of issues already filed.
	Existing(ctx context.Context) (map[string]bool, error)

	// Create files todo and returns the new issue's key or URL.
	Create(ctx context.Context, todo models.Todo, fingerprint string) (string, error)
}

// Filed is a TODO that was, or in a dry run would be, turned into an issue.
type Filed struct {
	Todo        models.Todo
	Fingerprint string
	Key         string
}

// Result summarizes a Run.
type Result struct {
	Created []Filed
	Skipped int
	Failed  int
}

const markerPrefix = "todotagger-fingerprint:"

var (
	namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/danielolaszy/todotagger"))
	markerRe  = regexp.MustCompile(regexp.QuoteMeta(markerPrefix) + `\s*([0-9a-fA-F-]{36})`)
)

// Fingerprint identifies a TODO by file and text. Line numbers are left out
// so that moving a comment does not file it again, and the file is taken in
// its CanonicalPath form so the root spelling of the scan does not matter.
func Fingerprint(todo models.Todo) string {
	return uuid.NewSHA1(namespace, []byte(CanonicalPath(todo.FilePath)+"\x00"+todo.Content)).String()
}

// CanonicalPath returns path slash separated and relative to the enclosing
// git repository, or to the working directory outside a repository. Paths
// outside both are returned absolute.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	abs = filepath.Join(resolveSymlinks(filepath.Dir(abs)), filepath.Base(abs))

	base := repositoryRoot(filepath.Dir(abs))
	if base == "" {
		if wd, err := os.Getwd(); err == nil {
			base = resolveSymlinks(wd)
		}
	}

	if base != "" {
		rel, err := filepath.Rel(base, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}

func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// repositoryRoot returns the nearest ancestor of dir holding a .git entry,
// or "" when there is none.
func repositoryRoot(dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Marker is the line embedded in issue bodies to carry a fingerprint.
func Marker(fingerprint string) string {
	return markerPrefix + " " + fingerprint
}

// ParseFingerprints returns every fingerprint marker found in text.
func ParseFingerprints(text string) []string {
	var out []string
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

// Title builds a short issue title for todo.
func Title(todo models.Todo) string {
	content := todo.Content
	if r := []rune(content); len(r) > 80 {
		content = string(r[:77]) + "..."
	}
	if content == "" {
		content = todo.Location()
	}
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(todo.Priority)), content)
}

// Body builds a Markdown issue body for todo ending with its marker.
func Body(todo models.Todo, fingerprint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", todo.Content)
	fmt.Fprintf(&b, "- **Location:** `%s`\n", todo.Location())
	fmt.Fprintf(&b, "- **Priority:** %s\n", todo.Priority)
	if todo.AssignedTo != "" {
		fmt.Fprintf(&b, "- **Assigned to:** @%s\n", todo.AssignedTo)
	}

	if a := todo.Analysis; a != nil {
		fmt.Fprintf(&b, "- **Complexity:** %s (about %.1f hours)\n", a.Complexity, a.EstimatedHours)
		if a.ImplementationApproach != "" {
			fmt.Fprintf(&b, "- **Approach:** %s\n", a.ImplementationApproach)
		}
	}

	if todo.Context != "" {
		fence := report.CodeFence(todo.Context)
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", fence, todo.Context, fence)
	}

	fmt.Fprintf(&b, "\n%s\n", Marker(fingerprint))
	return b.String()
}

// Run files every todo whose fingerprint the tracker has not seen. In a dry
// run nothing is created; Created lists what would have been filed.
// Failures to create individual issues are logged and counted.
func Run(ctx context.Context, tracker Tracker, todos []models.Todo, dryRun bool) (Result, error) {
	existing, err := tracker.Existing(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list existing issues in %s: %w", tracker.Name(), err)
	}

	log := logging.GetLogger().With("tracker", tracker.Name(), "dry_run", dryRun)
	log.Info("publishing todos",
		"todos", len(todos),
		"existing", len(existing))

	var result Result
	seen := make(map[string]bool, len(existing))
	for fp := range existing {
		seen[strings.ToLower(fp)] = true
	}

	for _, todo := range todos {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fp := Fingerprint(todo)
		if seen[fp] {
			log.Debug("todo already filed", "location", todo.Location(), "fingerprint", fp)
			result.Skipped++
			continue
		}
		seen[fp] = true

		if dryRun {
			log.Info("would create issue", "location", todo.Location(), "title", Title(todo))
			result.Created = append(result.Created, Filed{Todo: todo, Fingerprint: fp})
			continue
		}

		key, err := tracker.Create(ctx, todo, fp)
		if err != nil {
			log.Error("failed to create issue",
				"location", todo.Location(),
				"error", err)
			result.Failed++
			continue
		}

		log.Info("created issue", "key", key, "location", todo.Location())
		result.Created = append(result.Created, Filed{Todo: todo, Fingerprint: fp, Key: key})
	}

	return result, nil
}
