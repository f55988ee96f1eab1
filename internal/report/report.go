// Package report renders scan results as console text, Markdown, JSON, HTML
// and a terminal preview, and writes report files safely.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/danielolaszy/todotagger/pkg/models"
)

// Document is everything a renderer needs.
type Document struct {
	Todos       []models.Todo
	Analysis    *models.AnalysisReport
	GeneratedAt time.Time
}

// WorkPlan returns the attached plan or nil.
func (d Document) WorkPlan() *models.WorkPlan {
	if d.Analysis == nil {
		return nil
	}
	return d.Analysis.WorkPlan
}

// Renderer writes a document in one output format.
type Renderer func(w io.Writer, doc Document) error

// Counts returns the number of records per tier. Every tier is present.
func Counts(todos []models.Todo) map[models.Priority]int {
	counts := make(map[models.Priority]int, len(models.Priorities()))
	for _, p := range models.Priorities() {
		counts[p] = 0
	}
	for _, todo := range todos {
		counts[todo.Priority]++
	}
	return counts
}

// Label returns the display name of a tier, e.g. "Critical".
func Label(p models.Priority) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ShouldColor reports whether w is a terminal that accepts ANSI colours.
// NO_COLOR disables colour regardless.
func ShouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WriteFile renders into memory and replaces path atomically. Concurrent
// writers of the same path are serialized with a file lock kept in the
// temp directory.
func WriteFile(path string, doc Document, render Renderer) error {
	var buf bytes.Buffer
	if err := render(&buf, doc); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	lockName := "todotagger-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String() + ".lock"
	lock := flock.New(filepath.Join(os.TempDir(), lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	defer lock.Unlock()

	return atomicWrite(abs, buf.Bytes())
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
