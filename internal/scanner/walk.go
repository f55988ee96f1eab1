package scanner

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// ScanDirectory walks root, scans every candidate file exactly once and
// returns all records sorted by priority, file path and line number.
// Unreadable entries are logged and skipped; only an inaccessible root or
// a cancelled context is an error.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) ([]models.Todo, error) {
	files, err := s.collectFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	logging.Info("scanning files", "root", root, "count", len(files), "workers", s.workers)

	// Each worker owns one slot, so no locking is needed.
	results := make([][]models.Todo, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.ScanFile(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var todos []models.Todo
	for _, r := range results {
		todos = append(todos, r...)
	}

	// The sort must see the whole aggregate; per-file order alone is not enough.
	SortTodos(todos)

	logging.Info("scan complete", "root", root, "todo_count", len(todos))
	return todos, nil
}

// collectFiles returns candidate files in walk order. Excluded directories
// are pruned before descent and excluded files are never opened.
func (s *Scanner) collectFiles(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("failed to access path, skipping",
				"path", path,
				"error", err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.filter.IsExcluded(rel) {
			logging.Debug("excluded path", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !s.registry.MatchesFile(rel) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}

// SortTodos orders records by priority rank, then file path, then line
// number. Records with equal keys keep their relative order.
func SortTodos(todos []models.Todo) {
	slices.SortStableFunc(todos, func(a, b models.Todo) int {
		return cmp.Or(
			cmp.Compare(a.Priority.Rank(), b.Priority.Rank()),
			strings.Compare(a.FilePath, b.FilePath),
			cmp.Compare(a.LineNumber, b.LineNumber),
		)
	})
}

// FilterByPriority returns the records whose priority is one of tiers, in
// their existing order. No tiers means no filtering.
func FilterByPriority(todos []models.Todo, tiers ...models.Priority) []models.Todo {
	if len(tiers) == 0 {
		return todos
	}

	keep := make(map[models.Priority]bool, len(tiers))
	for _, t := range tiers {
		keep[t] = true
	}

	out := make([]models.Todo, 0, len(todos))
	for _, todo := range todos {
		if keep[todo.Priority] {
			out = append(out, todo)
		}
	}
	return out
}
