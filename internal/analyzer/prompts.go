package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/danielolaszy/todotagger/pkg/models"
)

const analysisSystemPrompt = `You are an experienced software consultant who analyses coding tasks and estimates effort.
Given a TODO comment and the surrounding code, assess:
1. complexity (simple, moderate or complex)
2. estimated working time in hours
3. an implementation approach
4. required skills
5. potential challenges
6. a suggested priority, taking the current priority into account

Reply with JSON only, using exactly these fields:
{
  "complexity": "simple|moderate|complex",
  "estimated_hours": <number>,
  "implementation_approach": "<short description>",
  "required_skills": ["<skill>", ...],
  "potential_challenges": ["<challenge>", ...],
  "suggested_priority": "critical|high|medium|low|normal"
}`

const planSystemPrompt = `You are an experienced project manager who plans software work.
Given a list of analysed TODO tasks, produce a sensible work plan that accounts for
complexity, effort, priority and likely dependencies between tasks.

Reply with JSON only, using exactly these fields:
{
  "todo_sequence": ["<todo_id>", ...],
  "estimated_total_hours": <number>,
  "suggested_timeline": {"<todo_id>": "<when, e.g. Day 1>"},
  "dependencies": {"<todo_id>": ["<todo_id it depends on>", ...]},
  "summary": "<plan summary>"
}`

func analysisMessages(todo models.Todo, codeContext string) []chatMessage {
	user := fmt.Sprintf(`TODO: %s
File: %s
Line: %d
Current priority: %s

Code context:
%s
%s
%s

Analyse the complexity, effort and implementation approach of this TODO.`,
		todo.Content, todo.FilePath, todo.LineNumber, todo.Priority, "```", codeContext, "```")

	return []chatMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: user},
	}
}

func planMessages(analyses []models.Analysis) ([]chatMessage, error) {
	data, err := json.MarshalIndent(analyses, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyses: %w", err)
	}

	user := fmt.Sprintf(`These are the analyses of all TODO tasks:

%s

Produce a work plan with the order of tasks, total effort, a timeline,
dependencies between tasks and a short summary.`, data)

	return []chatMessage{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: user},
	}, nil
}
