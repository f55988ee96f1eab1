package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/danielolaszy/todotagger/pkg/models"
)

type jsonMetadata struct {
	Timestamp        time.Time               `json:"timestamp"`
	TotalCount       int                     `json:"total_count"`
	CountsByPriority map[models.Priority]int `json:"counts_by_priority"`
}

type jsonReport struct {
	Metadata jsonMetadata     `json:"metadata"`
	Todos    []models.Todo    `json:"todos"`
	WorkPlan *models.WorkPlan `json:"work_plan,omitempty"`
}

// JSON writes {"metadata": {...}, "todos": [...]} with an optional
// "work_plan". An empty scan produces an empty todos array, never null.
func JSON(w io.Writer, doc Document) error {
	todos := doc.Todos
	if todos == nil {
		todos = []models.Todo{}
	}

	out := jsonReport{
		Metadata: jsonMetadata{
			Timestamp:        doc.GeneratedAt,
			TotalCount:       len(todos),
			CountsByPriority: Counts(todos),
		},
		Todos:    todos,
		WorkPlan: doc.WorkPlan(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
