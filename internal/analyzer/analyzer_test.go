package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/pkg/models"
)

type fakeAnalyzer struct {
	failOn   map[string]bool
	planErr  error
	seen     []string
	contexts []string
}

func (f *fakeAnalyzer) AnalyzeTodo(_ context.Context, id string, todo models.Todo, codeContext string) (*models.Analysis, error) {
	f.seen = append(f.seen, id)
	f.contexts = append(f.contexts, codeContext)
	if f.failOn[id] {
		return nil, errors.New("boom")
	}
	return &models.Analysis{Complexity: models.ComplexitySimple, EstimatedHours: 1, SuggestedPriority: todo.Priority}, nil
}

func (f *fakeAnalyzer) PlanWork(_ context.Context, analyses []models.Analysis) (*models.WorkPlan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	plan := &models.WorkPlan{Summary: fmt.Sprintf("%d tasks", len(analyses))}
	for _, a := range analyses {
		plan.TodoSequence = append(plan.TodoSequence, a.TodoID)
	}
	return plan, nil
}

func sampleTodos() []models.Todo {
	return []models.Todo{
		{FilePath: "a.py", LineNumber: 1, Content: "first", Priority: models.PriorityHigh},
		{FilePath: "b.py", LineNumber: 2, Content: "second", Priority: models.PriorityLow},
		{FilePath: "c.py", LineNumber: 3, Content: "third", Priority: models.PriorityNormal},
	}
}

func TestTodoID(t *testing.T) {
	assert.Equal(t, "TODO_1", TodoID(0))
	assert.Equal(t, "TODO_12", TodoID(11))
}

func TestRun(t *testing.T) {
	todos := sampleTodos()
	fake := &fakeAnalyzer{failOn: map[string]bool{"TODO_2": true}}

	out, report := Run(context.Background(), fake, todos, Options{})

	assert.Equal(t, []string{"TODO_1", "TODO_2", "TODO_3"}, fake.seen)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Analysis)
	assert.Equal(t, "TODO_1", out[0].Analysis.TodoID)
	assert.Nil(t, out[1].Analysis)
	require.NotNil(t, out[2].Analysis)
	assert.Equal(t, "TODO_3", out[2].Analysis.TodoID)

	for _, todo := range todos {
		assert.Nil(t, todo.Analysis, "input records must not be modified")
	}

	require.Len(t, report.Analyses, 2)
	require.NotNil(t, report.WorkPlan)
	assert.Equal(t, []string{"TODO_1", "TODO_3"}, report.WorkPlan.TodoSequence)
}

func TestRunEmpty(t *testing.T) {
	out, report := Run(context.Background(), &fakeAnalyzer{}, nil, Options{})
	assert.Empty(t, out)
	assert.Empty(t, report.Analyses)
	assert.Nil(t, report.WorkPlan)
}

func TestRunAllFail(t *testing.T) {
	fake := &fakeAnalyzer{failOn: map[string]bool{"TODO_1": true, "TODO_2": true, "TODO_3": true}}
	_, report := Run(context.Background(), fake, sampleTodos(), Options{})
	assert.Empty(t, report.Analyses)
	assert.Nil(t, report.WorkPlan)
}

func TestRunPlanFailure(t *testing.T) {
	fake := &fakeAnalyzer{planErr: errors.New("no plan")}
	out, report := Run(context.Background(), fake, sampleTodos(), Options{})
	assert.Len(t, report.Analyses, 3)
	assert.Nil(t, report.WorkPlan)
	assert.NotNil(t, out[0].Analysis)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeAnalyzer{}
	out, report := Run(ctx, fake, sampleTodos(), Options{Delay: time.Hour})
	assert.Empty(t, fake.seen)
	assert.Len(t, out, 3)
	assert.Empty(t, report.Analyses)
}

func TestRunReadsContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.py")
	require.NoError(t, os.WriteFile(path, []byte("l1\nl2\n# TODO: here\nl4\nl5\n"), 0o644))

	fake := &fakeAnalyzer{}
	Run(context.Background(), fake, []models.Todo{{FilePath: path, LineNumber: 3, Content: "here"}}, Options{ContextLines: 1})
	require.Len(t, fake.contexts, 1)
	assert.Equal(t, "l2\n# TODO: here\nl4", fake.contexts[0])
}

func TestReadFileContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.go")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n3\n4\n5\n"), 0o644))

	tests := []struct {
		name string
		line int
		n    int
		want string
	}{
		{"middle", 3, 1, "2\n3\n4"},
		{"clamped start", 1, 2, "1\n2\n3"},
		{"clamped end", 5, 3, "2\n3\n4\n5"},
		{"zero window", 3, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadFileContext(path, tt.line, tt.n))
		})
	}

	assert.Empty(t, ReadFileContext(filepath.Join(t.TempDir(), "missing"), 1, 5))
}

func TestNew(t *testing.T) {
	a, err := New(config.AIConfig{Provider: "demo"})
	require.NoError(t, err)
	assert.IsType(t, &Demo{}, a)

	_, err = New(config.AIConfig{Provider: "openai", APIBase: "https://api.openai.com/v1", Model: "gpt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TODO_AI_API_KEY")

	a, err = New(config.AIConfig{Provider: "qwen_local", APIBase: "http://localhost:8000/v1", Model: "qwen"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, a)
}

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestClientOpenAI(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		fmt.Fprint(w, chatReply("```json\n{\"complexity\": \"moderate\", \"estimated_hours\": 4.5, \"implementation_approach\": \"do it\", \"required_skills\": [\"Go\"], \"potential_challenges\": [], \"suggested_priority\": \"high\"}\n```"))
	}))
	defer srv.Close()

	c, err := NewClient(config.AIConfig{
		Provider:    "openai",
		APIKey:      "sk-test",
		APIBase:     srv.URL + "/v1/",
		Model:       "gpt-test",
		MaxTokens:   100,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	a, err := c.AnalyzeTodo(context.Background(), "TODO_1", models.Todo{Content: "fix", Priority: models.PriorityLow}, "code")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "gpt-test", gotBody.Model)
	assert.Equal(t, 100, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 2)
	assert.Contains(t, gotBody.Messages[1].Content, "TODO: fix")

	assert.Equal(t, "TODO_1", a.TodoID)
	assert.Equal(t, models.ComplexityModerate, a.Complexity)
	assert.InDelta(t, 4.5, a.EstimatedHours, 0.001)
	assert.Equal(t, models.PriorityHigh, a.SuggestedPriority)
}

func TestClientAzure(t *testing.T) {
	var gotKey, gotAuth, gotPath, gotVersion string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		fmt.Fprint(w, chatReply(`{"todo_sequence": ["TODO_1"], "estimated_total_hours": 2, "suggested_timeline": {"TODO_1": "Day 1"}, "dependencies": {}, "summary": "ok"}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.AIConfig{
		Provider:   "azure",
		APIKey:     "azure-key",
		APIBase:    srv.URL,
		APIVersion: "2024-02-01",
		Model:      "my-deploy",
	})
	require.NoError(t, err)

	plan, err := c.PlanWork(context.Background(), []models.Analysis{{TodoID: "TODO_1", Complexity: models.ComplexitySimple, EstimatedHours: 2}})
	require.NoError(t, err)

	assert.Equal(t, "azure-key", gotKey)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "/openai/deployments/my-deploy/chat/completions", gotPath)
	assert.Equal(t, "2024-02-01", gotVersion)
	assert.Empty(t, gotBody.Model)

	assert.Equal(t, []string{"TODO_1"}, plan.TodoSequence)
	assert.Equal(t, "Day 1", plan.SuggestedTimeline["TODO_1"])
	assert.Equal(t, "ok", plan.Summary)
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `{"error": {"message": "down"}}`, "status 500"},
		{"api error", http.StatusOK, `{"error": {"message": "quota"}}`, "quota"},
		{"no choices", http.StatusOK, `{"choices": []}`, "no choices"},
		{"not json", http.StatusOK, chatReply("sorry, I cannot help"), "not valid JSON"},
		{"schema violation", http.StatusOK, chatReply(`{"complexity": "huge", "estimated_hours": 1}`), "complexity"},
		{"missing field", http.StatusOK, chatReply(`{"complexity": "simple"}`), "estimated_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c, err := NewClient(config.AIConfig{Provider: "qwen_local", APIBase: srv.URL, Model: "qwen"})
			require.NoError(t, err)

			_, err = c.AnalyzeTodo(context.Background(), "TODO_1", models.Todo{Content: "x"}, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(config.AIConfig{Provider: "qwen_local", APIBase: srv.URL, Model: "q", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.AnalyzeTodo(context.Background(), "TODO_1", models.Todo{Content: "x"}, "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientInvalidProxy(t *testing.T) {
	_, err := NewClient(config.AIConfig{Provider: "qwen_local", APIBase: "http://localhost", Model: "q", Proxy: "://bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"Here you go: {\"a\": {\"b\": 2}} hope it helps", `{"a": {"b": 2}}`},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(extractJSON(tt.in)))
	}
}

func TestValidateAnalysis(t *testing.T) {
	require.NoError(t, ValidateAnalysis([]byte(`{"complexity": "complex", "estimated_hours": 10, "suggested_priority": "normal"}`)))

	err := ValidateAnalysis([]byte(`{"complexity": "simple", "estimated_hours": -1}`))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "estimated_hours", se.Path)

	err = ValidateAnalysis([]byte(`{"complexity": "simple", "estimated_hours": 1, "suggested_priority": "asap"}`))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "suggested_priority", se.Path)
}

func TestValidateWorkPlan(t *testing.T) {
	require.NoError(t, ValidateWorkPlan([]byte(`{"todo_sequence": [], "estimated_total_hours": 0}`)))
	require.Error(t, ValidateWorkPlan([]byte(`{"summary": "x"}`)))
	require.Error(t, ValidateWorkPlan([]byte(`[1, 2]`)))
}

func TestJSONPointerToPath(t *testing.T) {
	assert.Equal(t, "", jsonPointerToPath(""))
	assert.Equal(t, "required_skills.0", jsonPointerToPath("/required_skills/0"))
	assert.Equal(t, "a/b.c~d", jsonPointerToPath("/a~1b/c~0d"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.True(t, strings.HasSuffix(truncate(strings.Repeat("é", 40), 30), "..."))
}
