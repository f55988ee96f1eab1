// Package analyzer estimates complexity and effort for TODO records and
// proposes a work plan, either through an LLM chat-completions API or a
// deterministic simulation. Analysis is best-effort: failures are logged and
// the affected record is left without an annotation.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// Analyzer produces per-TODO analyses and a plan over them.
type Analyzer interface {
	// AnalyzeTodo estimates a single TODO. codeContext holds the source
	// lines around the comment and may be empty.
	AnalyzeTodo(ctx context.Context, id string, todo models.Todo, codeContext string) (*models.Analysis, error)

	// PlanWork orders the analysed TODOs into a schedule.
	PlanWork(ctx context.Context, analyses []models.Analysis) (*models.WorkPlan, error)
}

// Options tune a Run.
type Options struct {
	// Delay is the pause between consecutive AnalyzeTodo calls.
	Delay time.Duration
	// ContextLines is how many source lines to send on each side of a TODO.
	ContextLines int
}

// New returns the Demo analyzer for the "demo" provider and an API client
// otherwise.
func New(cfg config.AIConfig) (Analyzer, error) {
	if strings.EqualFold(cfg.Provider, config.ProviderDemo) {
		return NewDemo(), nil
	}
	return NewClient(cfg)
}

// TodoID returns the identifier of the record at a 0-based position.
func TodoID(index int) string {
	return fmt.Sprintf("TODO_%d", index+1)
}

// Run analyses every record in order and then asks for a work plan. It
// returns copies of todos with Analysis attached where it succeeded; the
// input slice is not modified. Run never fails: errors are logged and the
// report simply holds fewer analyses.
func Run(ctx context.Context, a Analyzer, todos []models.Todo, opts Options) ([]models.Todo, *models.AnalysisReport) {
	out := make([]models.Todo, len(todos))
	copy(out, todos)

	report := &models.AnalysisReport{Analyses: []models.Analysis{}}

	for i := range out {
		if err := ctx.Err(); err != nil {
			logging.Warn("analysis interrupted", "analyzed", len(report.Analyses), "error", err)
			break
		}

		id := TodoID(i)
		logging.Info("analyzing todo",
			"todo_id", id,
			"progress", fmt.Sprintf("%d/%d", i+1, len(out)),
			"content", truncate(out[i].Content, 30))

		codeContext := ReadFileContext(out[i].FilePath, out[i].LineNumber, opts.ContextLines)
		analysis, err := a.AnalyzeTodo(ctx, id, out[i], codeContext)
		if err != nil {
			logging.Warn("failed to analyze todo",
				"todo_id", id,
				"location", out[i].Location(),
				"error", err)
			continue
		}

		analysis.TodoID = id
		attached := *analysis
		out[i].Analysis = &attached
		report.Analyses = append(report.Analyses, attached)

		if i < len(out)-1 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.Delay):
			}
		}
	}

	if len(report.Analyses) == 0 {
		return out, report
	}

	logging.Info("generating work plan", "analyses", len(report.Analyses))
	plan, err := a.PlanWork(ctx, report.Analyses)
	if err != nil {
		logging.Warn("failed to generate work plan", "error", err)
		return out, report
	}
	report.WorkPlan = plan

	return out, report
}

// ReadFileContext returns up to n lines on either side of line (1-based).
// Unreadable files yield an empty string.
func ReadFileContext(path string, line, n int) string {
	if n <= 0 {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("failed to read file context", "path", path, "error", err)
		return ""
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	start := max(0, line-n-1)
	end := min(len(lines), line+n)
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
