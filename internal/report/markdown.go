package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielolaszy/todotagger/pkg/models"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// CodeFence returns a backtick fence longer than any backtick run in text,
// so text cannot close the block it is wrapped in.
func CodeFence(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

// Markdown renders a summary table followed by one section per non-empty
// tier and, when present, the work plan.
func Markdown(w io.Writer, doc Document) error {
	var b strings.Builder
	counts := Counts(doc.Todos)

	b.WriteString("# TODO Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Priority | Count |\n")
	b.WriteString("|----------|-------|\n")
	for _, p := range models.Priorities() {
		fmt.Fprintf(&b, "| %s | %d |\n", Label(p), counts[p])
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", len(doc.Todos))

	if len(doc.Todos) == 0 {
		b.WriteString("No TODO items found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, p := range models.Priorities() {
		if counts[p] == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", Label(p), counts[p])
		for _, todo := range doc.Todos {
			if todo.Priority == p {
				writeMarkdownItem(&b, todo)
			}
		}
	}

	if plan := doc.WorkPlan(); plan != nil {
		writeMarkdownPlan(&b, plan, doc.Todos)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdownItem(b *strings.Builder, todo models.Todo) {
	fmt.Fprintf(b, "- **%s** - %s", escapeMarkdown(todo.Location()), escapeMarkdown(todo.Content))
	if todo.AssignedTo != "" {
		fmt.Fprintf(b, " (assigned to @%s)", escapeMarkdown(todo.AssignedTo))
	}
	b.WriteString("\n")

	if todo.Context != "" {
		fence := CodeFence(todo.Context)
		fmt.Fprintf(b, "\n  %s\n", fence)
		for _, line := range strings.Split(todo.Context, "\n") {
			fmt.Fprintf(b, "  %s\n", line)
		}
		fmt.Fprintf(b, "  %s\n", fence)
	}

	if a := todo.Analysis; a != nil {
		b.WriteString("\n")
		fmt.Fprintf(b, "  - Analysis ID: %s\n", a.TodoID)
		fmt.Fprintf(b, "  - Complexity: %s\n", a.Complexity)
		fmt.Fprintf(b, "  - Estimated hours: %.1f\n", a.EstimatedHours)
		fmt.Fprintf(b, "  - Approach: %s\n", escapeMarkdown(a.ImplementationApproach))
		if len(a.RequiredSkills) > 0 {
			fmt.Fprintf(b, "  - Skills: %s\n", escapeMarkdown(strings.Join(a.RequiredSkills, ", ")))
		}
		if len(a.PotentialChallenges) > 0 {
			fmt.Fprintf(b, "  - Challenges: %s\n", escapeMarkdown(strings.Join(a.PotentialChallenges, "; ")))
		}
		fmt.Fprintf(b, "  - Suggested priority: %s\n", a.SuggestedPriority)
	}
	b.WriteString("\n")
}

func writeMarkdownPlan(b *strings.Builder, plan *models.WorkPlan, todos []models.Todo) {
	byID := make(map[string]models.Todo)
	for _, todo := range todos {
		if todo.Analysis != nil {
			byID[todo.Analysis.TodoID] = todo
		}
	}

	b.WriteString("## Work Plan\n\n")
	if plan.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", escapeMarkdown(plan.Summary))
	}
	fmt.Fprintf(b, "Estimated total hours: %.1f\n\n", plan.EstimatedTotalHours)

	if len(plan.TodoSequence) == 0 {
		return
	}

	b.WriteString("| # | TODO | Location | Timeline | Depends on |\n")
	b.WriteString("|---|------|----------|----------|------------|\n")
	for i, id := range plan.TodoSequence {
		location := ""
		if todo, ok := byID[id]; ok {
			location = escapeMarkdown(todo.Location())
		}
		deps := append([]string(nil), plan.Dependencies[id]...)
		sort.Strings(deps)
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s |\n",
			i+1, id, location, escapeMarkdown(plan.SuggestedTimeline[id]), strings.Join(deps, ", "))
	}
	b.WriteString("\n")
}
