package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/publish"
	"github.com/danielolaszy/todotagger/pkg/models"
)

func TestJiraClientCredentialValidation(t *testing.T) {
	testCases := []struct {
		name          string
		cfg           config.JiraConfig
		wantError     bool
		errorContains string
	}{
		{
			name:      "All credentials provided",
			cfg:       config.JiraConfig{URL: "https://example.atlassian.net", Username: "test@example.com", Token: "test-token"},
			wantError: false,
		},
		{
			name:          "Missing URL",
			cfg:           config.JiraConfig{Username: "test@example.com", Token: "test-token"},
			wantError:     true,
			errorContains: "JIRA_URL",
		},
		{
			name:          "Missing username",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Token: "test-token"},
			wantError:     true,
			errorContains: "JIRA_USERNAME",
		},
		{
			name:          "Missing token",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Username: "test@example.com"},
			wantError:     true,
			errorContains: "JIRA_TOKEN",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.cfg)
			if !tc.wantError {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestProjectKey(t *testing.T) {
	assert.Equal(t, "PROJ", projectKey("PROJ"))
	assert.Equal(t, "PROJ", projectKey("PROJ Board"))
	assert.Equal(t, "PROJ", projectKey("  PROJ Kanban Board "))
}

func TestNilClient(t *testing.T) {
	client := &Client{}

	_, err := client.CreateTicket(context.Background(), "TEST", "s", "d", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	_, err = client.SearchProject(context.Background(), "TEST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestDescription(t *testing.T) {
	todo := models.Todo{
		FilePath:   "a.go",
		LineNumber: 3,
		Content:    "handle timeouts",
		Priority:   models.PriorityHigh,
		AssignedTo: "bob",
		Context:    "// TODO(bob): handle timeouts",
	}

	d := description(todo, "fp")
	assert.Contains(t, d, "*Location:* {{a.go:3}}")
	assert.Contains(t, d, "*Assigned to:* bob")
	assert.Contains(t, d, "{noformat}\n// TODO(bob): handle timeouts\n{noformat}")
	assert.Contains(t, d, publish.Marker("fp"))
}

func TestTracker(t *testing.T) {
	filed := models.Todo{FilePath: "a.go", LineNumber: 3, Content: "handle timeouts", Priority: models.PriorityHigh}
	fresh := models.Todo{FilePath: "b.go", LineNumber: 8, Content: "drop legacy flag", Priority: models.PriorityLow}

	var (
		searches []string
		created  []map[string]any
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "me@example.com", user)
		assert.Equal(t, "secret", pass)

		searches = append(searches, r.URL.Query().Get("jql"))
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))

		issues := []map[string]any{
			{"key": "PROJ-1", "fields": map[string]any{"description": description(filed, publish.Fingerprint(filed))}},
			{"key": "PROJ-2", "fields": map[string]any{"description": "written by hand"}},
		}
		page := issues[startAt : startAt+1]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt":    startAt,
			"maxResults": 1,
			"total":      len(issues),
			"issues":     page,
		})
	})
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		created = append(created, body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": "100%d", "key": "PROJ-%d"}`, len(created), 10+len(created))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(config.JiraConfig{URL: srv.URL, Username: "me@example.com", Token: "secret"})
	require.NoError(t, err)

	tracker := client.Tracker("PROJ Board")
	assert.Equal(t, "jira PROJ", tracker.Name())

	result, err := publish.Run(context.Background(), tracker, []models.Todo{filed, fresh}, false)
	require.NoError(t, err)

	require.Len(t, searches, 2, "search is paginated")
	assert.Equal(t, `project = "PROJ" AND labels = "todotagger"`, searches[0])

	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "PROJ-11", result.Created[0].Key)

	require.Len(t, created, 1)
	fields, ok := created[0]["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[LOW] drop legacy flag", fields["summary"])
	assert.Equal(t, []any{"todotagger", "priority-low"}, fields["labels"])
	project, ok := fields["project"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PROJ", project["key"])
}
