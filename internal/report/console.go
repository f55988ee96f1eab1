package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/danielolaszy/todotagger/pkg/models"
)

const rule = "================================================================================"

// consoleScheme holds one colour per tier plus accents for locations and
// assignees.
type consoleScheme struct {
	tiers    map[models.Priority]*color.Color
	location *color.Color
	assignee *color.Color
	faint    *color.Color
}

func newConsoleScheme(enabled bool) *consoleScheme {
	s := &consoleScheme{
		tiers: map[models.Priority]*color.Color{
			models.PriorityCritical: color.New(color.FgRed, color.Bold),
			models.PriorityHigh:     color.New(color.FgYellow, color.Bold),
			models.PriorityMedium:   color.New(color.FgCyan),
			models.PriorityLow:      color.New(color.FgBlue),
			models.PriorityNormal:   color.New(color.FgGreen),
		},
		location: color.New(color.FgWhite, color.Bold),
		assignee: color.New(color.FgMagenta),
		faint:    color.New(color.Faint),
	}

	all := []*color.Color{s.location, s.assignee, s.faint}
	for _, c := range s.tiers {
		all = append(all, c)
	}
	// fatih/color only inspects stdout; the caller knows the real writer.
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Console returns a renderer printing records grouped under a header each
// time the tier changes.
func Console(useColor bool) Renderer {
	return func(w io.Writer, doc Document) error {
		scheme := newConsoleScheme(useColor)
		var b strings.Builder

		if len(doc.Todos) == 0 {
			b.WriteString("No TODO items found.\n")
			b.WriteString(rule + "\n")
			b.WriteString("Total: 0 TODO items\n")
			_, err := io.WriteString(w, b.String())
			return err
		}

		fmt.Fprintf(&b, "\nFound %d TODO items (sorted by priority):\n", len(doc.Todos))
		b.WriteString(rule + "\n")

		var current models.Priority
		for i, todo := range doc.Todos {
			tier := scheme.tiers[todo.Priority]
			if tier == nil {
				tier = scheme.tiers[models.PriorityNormal]
			}

			if i == 0 || todo.Priority != current {
				current = todo.Priority
				fmt.Fprintf(&b, "\n%s\n", tier.Sprintf("[%s]", strings.ToUpper(string(todo.Priority))))
			}

			fmt.Fprintf(&b, "  %s", scheme.location.Sprint(todo.Location()))
			if todo.AssignedTo != "" {
				fmt.Fprintf(&b, " %s", scheme.assignee.Sprint("@"+todo.AssignedTo))
			}
			fmt.Fprintf(&b, " %s\n", tier.Sprint(todo.Content))

			if a := todo.Analysis; a != nil {
				fmt.Fprintf(&b, "    %s\n", scheme.faint.Sprintf("%s, %.1fh, suggested %s: %s",
					a.Complexity, a.EstimatedHours, a.SuggestedPriority, a.ImplementationApproach))
			}
		}

		b.WriteString("\n" + rule + "\n")
		fmt.Fprintf(&b, "Total: %d TODO items\n", len(doc.Todos))

		if plan := doc.WorkPlan(); plan != nil {
			fmt.Fprintf(&b, "Work plan: %.1f hours. %s\n", plan.EstimatedTotalHours, plan.Summary)
		}

		_, err := io.WriteString(w, b.String())
		return err
	}
}
