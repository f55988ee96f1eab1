package analyzer

import (
	"cmp"
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/danielolaszy/todotagger/pkg/models"
)

var (
	demoSkills = []string{
		"Go", "Python", "JavaScript", "HTML/CSS", "React", "Vue", "Node.js",
		"SQL", "MongoDB", "Redis", "Docker", "Kubernetes", "AWS", "Git",
		"CI/CD", "Testing", "Performance tuning", "Security", "UI/UX design",
		"REST APIs", "GraphQL", "WebSocket", "Microservices", "Message queues",
	}

	demoChallenges = []string{
		"requires a deep understanding of the existing code",
		"related modules may need refactoring",
		"strict performance requirements",
		"backward compatibility must be preserved",
		"may affect other features",
		"needs thorough test coverage",
		"documentation must be updated alongside",
		"possible security implications",
		"user experience needs special care",
		"cross-platform compatibility",
		"data consistency guarantees",
		"complex concurrent behaviour",
		"many edge cases to cover",
		"error handling needs to be completed",
		"may need a third-party library",
	}

	demoTechs      = []string{"React", "Vue", "Node.js", "Express", "Django", "Flask", "SQLAlchemy", "gRPC", "Redux"}
	demoComponents = []string{"user interface", "backend API", "data model", "auth system", "cache layer", "database queries", "middleware", "helpers", "configuration"}
	demoFeatures   = []string{"input validation", "error handling", "performance work", "usability", "responsive layout", "state management", "data consistency", "hardening"}
	demoAspects    = []string{"maintainability", "performance", "security", "usability", "readability", "test coverage", "extensibility", "compatibility"}
	demoPatterns   = []string{"factory", "singleton", "observer", "strategy", "adapter", "decorator", "proxy", "composite", "command", "template method"}

	complexityKeywords = []string{"difficult", "complex", "refactor", "optimize", "optimise", "rewrite", "migrate"}

	skillKeywords = []struct {
		keyword string
		skills  []string
	}{
		{"python", []string{"Python"}},
		{"golang", []string{"Go"}},
		{"js", []string{"JavaScript", "Node.js"}},
		{"react", []string{"React", "JavaScript"}},
		{"vue", []string{"Vue", "JavaScript"}},
		{"ui", []string{"HTML/CSS", "UI/UX design"}},
		{"api", []string{"REST APIs", "GraphQL"}},
		{"database", []string{"SQL", "MongoDB", "Redis"}},
		{"perf", []string{"Performance tuning"}},
		{"secur", []string{"Security"}},
		{"test", []string{"Testing"}},
		{"deploy", []string{"Docker", "Kubernetes"}},
	}

	priorityFactor = map[models.Priority]float64{
		models.PriorityCritical: 1.5,
		models.PriorityHigh:     1.2,
		models.PriorityMedium:   1.0,
		models.PriorityLow:      0.8,
		models.PriorityNormal:   1.0,
	}
)

const hoursPerDay = 8.0

// Demo simulates an analyzer without calling any API. Results are random
// but seeded from the input, so the same TODOs always produce the same
// analyses and plan.
type Demo struct{}

// NewDemo returns a Demo analyzer.
func NewDemo() *Demo {
	return &Demo{}
}

// AnalyzeTodo returns a simulated analysis for todo.
func (d *Demo) AnalyzeTodo(ctx context.Context, id string, todo models.Todo, _ string) (*models.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := seededRand(todo.FilePath, todo.Content, string(todo.Priority))
	content := strings.ToLower(todo.Content)

	complexity, hours := estimate(rng, content, todo.Priority)

	return &models.Analysis{
		TodoID:                 id,
		Complexity:             complexity,
		EstimatedHours:         hours,
		ImplementationApproach: approach(rng),
		RequiredSkills:         pickSkills(rng, content),
		PotentialChallenges:    sample(rng, demoChallenges, 1+rng.IntN(3)),
		SuggestedPriority:      shiftPriority(rng, todo.Priority),
	}, nil
}

// PlanWork orders analyses by suggested priority, then simpler work first,
// then longer estimates first, and packs them into 8-hour days.
func (d *Demo) PlanWork(ctx context.Context, analyses []models.Analysis) (*models.WorkPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(analyses)
	slices.SortStableFunc(sorted, func(a, b models.Analysis) int {
		return cmp.Or(
			cmp.Compare(a.SuggestedPriority.Rank(), b.SuggestedPriority.Rank()),
			cmp.Compare(a.Complexity.Weight(), b.Complexity.Weight()),
			cmp.Compare(b.EstimatedHours, a.EstimatedHours),
		)
	})

	plan := &models.WorkPlan{
		TodoSequence:      make([]string, 0, len(sorted)),
		SuggestedTimeline: make(map[string]string, len(sorted)),
		Dependencies:      map[string][]string{},
	}

	ids := make([]string, 0, len(sorted))
	for _, a := range sorted {
		ids = append(ids, a.TodoID)
	}
	plan.TodoSequence = ids

	day, dayHours, lastDay := 1, 0.0, 0
	complexCount := 0
	for _, a := range sorted {
		plan.EstimatedTotalHours += a.EstimatedHours
		if a.Complexity == models.ComplexityComplex {
			complexCount++
		}

		if dayHours > 0 && dayHours+a.EstimatedHours > hoursPerDay {
			day++
			dayHours = 0
		}
		plan.SuggestedTimeline[a.TodoID] = fmt.Sprintf("Day %d", day)
		lastDay = day
		dayHours += a.EstimatedHours

		// A long task takes the rest of its day.
		if a.EstimatedHours > 6 {
			day++
			dayHours = 0
		}
	}
	plan.EstimatedTotalHours = round1(plan.EstimatedTotalHours)

	rng := seededRand(ids...)
	for i, id := range ids {
		if float64(i) < float64(len(ids))*0.3 {
			continue
		}
		if rng.Float64() >= 0.4 {
			continue
		}
		n := min(i, 1+rng.IntN(2))
		if n == 0 {
			continue
		}
		plan.Dependencies[id] = sample(rng, ids[:i], n)
	}

	plan.Summary = fmt.Sprintf(
		"%d TODO items, %d of them complex, about %.1f hours of work over %d days. Start with the highest priority items and respect the dependencies between tasks.",
		len(sorted), complexCount, plan.EstimatedTotalHours, lastDay)

	return plan, nil
}

func estimate(rng *rand.Rand, content string, priority models.Priority) (models.Complexity, float64) {
	score := float64(len([]rune(content))) / 20
	for _, kw := range complexityKeywords {
		if strings.Contains(content, kw) {
			score += 2
		}
	}
	if f, ok := priorityFactor[priority]; ok {
		score *= f
	}

	switch {
	case score > 8:
		return models.ComplexityComplex, round1(uniform(rng, 8, 24))
	case score > 4:
		return models.ComplexityModerate, round1(uniform(rng, 3, 8))
	default:
		return models.ComplexitySimple, round1(uniform(rng, 0.5, 3))
	}
}

func pickSkills(rng *rand.Rand, content string) []string {
	want := 2 + rng.IntN(4)
	var skills []string
	add := func(s string) {
		if !slices.Contains(skills, s) {
			skills = append(skills, s)
		}
	}

	for _, sk := range skillKeywords {
		if strings.Contains(content, sk.keyword) {
			add(sk.skills[rng.IntN(len(sk.skills))])
		}
	}
	for len(skills) < want {
		add(demoSkills[rng.IntN(len(demoSkills))])
	}
	return skills
}

func approach(rng *rand.Rand) string {
	pick := func(from []string) string { return from[rng.IntN(len(from))] }

	switch rng.IntN(6) {
	case 0:
		return fmt.Sprintf("Use %s to implement %s while keeping %s in mind", pick(demoTechs), pick(demoFeatures), pick(demoAspects))
	case 1:
		return fmt.Sprintf("Extend the existing %s with %s", pick(demoComponents), pick(demoFeatures))
	case 2:
		return fmt.Sprintf("Refactor the %s to support %s, watching %s", pick(demoComponents), pick(demoFeatures), pick(demoAspects))
	case 3:
		return fmt.Sprintf("Add a new %s module that provides %s", pick(demoComponents), pick(demoFeatures))
	case 4:
		return fmt.Sprintf("Integrate %s for %s and improve %s", pick(demoTechs), pick(demoFeatures), pick(demoAspects))
	default:
		return fmt.Sprintf("Apply the %s pattern to %s to improve %s", pick(demoPatterns), pick(demoFeatures), pick(demoAspects))
	}
}

// shiftPriority moves p at most one tier, staying put 60% of the time.
func shiftPriority(rng *rand.Rand, p models.Priority) models.Priority {
	if !p.Valid() {
		return p
	}
	shift := 0
	switch r := rng.Float64(); {
	case r < 0.2:
		shift = -1
	case r >= 0.8:
		shift = 1
	}
	tiers := models.Priorities()
	idx := max(0, min(len(tiers)-1, p.Rank()+shift))
	return tiers[idx]
}

// sample returns n distinct elements of from in random order.
func sample(rng *rand.Rand, from []string, n int) []string {
	n = min(n, len(from))
	perm := rng.Perm(len(from))
	out := make([]string, n)
	for i := range n {
		out[i] = from[perm[i]]
	}
	return out
}

func seededRand(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
