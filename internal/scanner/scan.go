package scanner

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/pkg/models"
)

var errInvalidUTF8 = errors.New("file is not valid UTF-8")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Scanner extracts TODO records from files and directories.
type Scanner struct {
	registry *Registry
	filter   *Filter
	workers  int
	now      func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers bounds how many files are scanned at once. Values below 1
// are treated as 1.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		s.workers = max(n, 1)
	}
}

// WithClock replaces time.Now as the source of CreationDate.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// New compiles cfg into a Scanner. Any pattern error is returned as a
// *PatternError.
func New(cfg config.ScanConfig, opts ...Option) (*Scanner, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	filter, err := NewFilter(cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		registry: registry,
		filter:   filter,
		workers:  max(cfg.Workers, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Registry returns the compiled patterns.
func (s *Scanner) Registry() *Registry {
	return s.registry
}

// Filter returns the exclusion filter.
func (s *Scanner) Filter() *Filter {
	return s.filter
}

// ScanFile returns the TODO records of a single file in line order. The
// path must already have passed the Filter. A file that cannot be read or
// decoded is logged and contributes nothing.
func (s *Scanner) ScanFile(path string) []models.Todo {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("failed to read file, skipping",
			"path", path,
			"error", err)
		return nil
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		logging.Warn("failed to decode file, skipping",
			"path", path,
			"error", errInvalidUTF8)
		return nil
	}

	return s.scanContent(path, string(data))
}

// scanContent applies the extension's comment pattern to every line. Only
// the first marker on a physical line is detected.
func (s *Scanner) scanContent(path, content string) []models.Todo {
	pattern := s.registry.CommentPattern(extension(path))
	lines := splitLines(content)
	scannedAt := s.now()

	var todos []models.Todo
	for i, line := range lines {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		text := strings.TrimSpace(m[2])
		todos = append(todos, models.Todo{
			FilePath:     path,
			LineNumber:   i + 1,
			Content:      text,
			Priority:     s.registry.Classify(text),
			AssignedTo:   strings.TrimSpace(m[1]),
			Context:      contextWindow(lines, i),
			CreationDate: scannedAt,
		})
	}

	if len(todos) > 0 {
		logging.Debug("found todos in file", "path", path, "count", len(todos))
	}
	return todos
}

// extension returns the case-sensitive suffix after the last "." of the
// base name, or "" when there is none.
func extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// contextWindow joins the lines before and after i with line i. Lines
// outside the file are omitted.
func contextWindow(lines []string, i int) string {
	parts := make([]string, 0, 3)
	if i > 0 {
		parts = append(parts, strings.TrimSpace(lines[i-1]))
	}
	parts = append(parts, strings.TrimSpace(lines[i]))
	if i+1 < len(lines) {
		parts = append(parts, strings.TrimSpace(lines[i+1]))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
