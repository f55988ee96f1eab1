// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency tier of a TODO comment.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
)

// Priorities returns every tier from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityNormal}
}

// Rank returns the sort position of the tier, 0 for critical through 4 for
// normal. Unknown values rank after normal.
func (p Priority) Rank() int {
	for i, tier := range Priorities() {
		if tier == p {
			return i
		}
	}
	return len(Priorities())
}

// Valid reports whether p is one of the five fixed tiers.
func (p Priority) Valid() bool {
	return p.Rank() < len(Priorities())
}

// ParsePriority converts user input such as "HIGH" into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q, expected one of %v", s, Priorities())
	}
	return p, nil
}

// Todo represents a single TODO comment discovered in a source file.
type Todo struct {
	// FilePath is the file containing the comment, joined onto the scan root
	FilePath string `json:"file_path"`

	// LineNumber is the 1-based line of the comment
	LineNumber int `json:"line_number"`

	// Content is the trimmed text following the TODO marker
	Content string `json:"content"`

	// Priority is the classified tier
	Priority Priority `json:"priority"`

	// AssignedTo is the name from a "TODO(name):" annotation, empty when absent
	AssignedTo string `json:"assigned_to"`

	// Context is the previous, matched and next line joined by newlines
	Context string `json:"context"`

	// CreationDate is when the scan produced this record, not when the
	// comment was written
	CreationDate time.Time `json:"creation_date"`

	// Analysis is the optional result of an external analyzer
	Analysis *Analysis `json:"analysis,omitempty"`
}

// Location returns "path:line".
func (t Todo) Location() string {
	return fmt.Sprintf("%s:%d", t.FilePath, t.LineNumber)
}

// Complexity is the analyzer's estimate of how hard a TODO is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Weight orders complexities from simple (0) to complex (2).
func (c Complexity) Weight() int {
	switch c {
	case ComplexityComplex:
		return 2
	case ComplexityModerate:
		return 1
	default:
		return 0
	}
}

// Analysis is the per-TODO estimate returned by an analyzer.
type Analysis struct {
	TodoID                 string     `json:"todo_id"`
	Complexity             Complexity `json:"complexity"`
	EstimatedHours         float64    `json:"estimated_hours"`
	ImplementationApproach string     `json:"implementation_approach"`
	RequiredSkills         []string   `json:"required_skills"`
	PotentialChallenges    []string   `json:"potential_challenges"`
	SuggestedPriority      Priority   `json:"suggested_priority"`
}

// WorkPlan is a suggested schedule over a set of analyzed TODOs.
type WorkPlan struct {
	// TodoSequence lists TODO ids in the suggested order of work
	TodoSequence []string `json:"todo_sequence"`

	// EstimatedTotalHours is the sum of all estimates
	EstimatedTotalHours float64 `json:"estimated_total_hours"`

	// SuggestedTimeline maps a TODO id to a slot such as "Day 2"
	SuggestedTimeline map[string]string `json:"suggested_timeline"`

	// Dependencies maps a TODO id to the ids it should wait for
	Dependencies map[string][]string `json:"dependencies"`

	// Summary is a short human readable description of the plan
	Summary string `json:"summary"`
}

// AnalysisReport bundles every successful analysis with the optional plan.
type AnalysisReport struct {
	Analyses []Analysis `json:"analyses"`
	WorkPlan *WorkPlan  `json:"work_plan,omitempty"`
}
