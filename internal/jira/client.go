// Package jira files TODOs as JIRA tickets.
package jira

import (
	"context"
	"fmt"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/publish"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// Label is attached to every ticket this package creates so that earlier
// tickets can be found again.
const Label = "todotagger"

const searchPageSize = 100

// Client handles interactions with the JIRA API
type Client struct {
	client *jira.Client
}

// NewClient creates a new JIRA client authenticated with basic auth.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if err := config.ValidateJiraConfig(&config.Config{Jira: cfg}); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	logging.Debug("jira client configured",
		"url", cfg.URL,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{client: client}, nil
}

// projectKey takes the key from board names like "PROJ Board".
func projectKey(boardName string) string {
	key, _, _ := strings.Cut(strings.TrimSpace(boardName), " ")
	return key
}

// SearchProject returns every ticket in the project of boardName that
// carries Label.
func (c *Client) SearchProject(ctx context.Context, boardName string) ([]jira.Issue, error) {
	if c.client == nil {
		return nil, fmt.Errorf("JIRA client not initialized")
	}

	jql := fmt.Sprintf(`project = "%s" AND labels = "%s"`, projectKey(boardName), Label)
	opts := &jira.SearchOptions{
		MaxResults: searchPageSize,
		Fields:     []string{"summary", "description", "labels"},
	}

	var all []jira.Issue
	for {
		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search JIRA issues: %w (status: %d)", err, statusCode(resp))
		}
		all = append(all, issues...)

		if len(issues) == 0 || resp == nil || opts.StartAt+len(issues) >= resp.Total {
			break
		}
		opts.StartAt += len(issues)
	}

	logging.Debug("fetched jira tickets", "jql", jql, "count", len(all))
	return all, nil
}

// CreateTicket opens a Task in the project of boardName and returns its key.
func (c *Client) CreateTicket(ctx context.Context, boardName, summary, description string, labels []string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("JIRA client not initialized")
	}

	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: projectKey(boardName)},
			Summary:     summary,
			Description: description,
			Type:        jira.IssueType{Name: "Task"},
			Labels:      labels,
		},
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return "", fmt.Errorf("failed to create JIRA ticket: %w (status: %d)", err, statusCode(resp))
	}

	return created.Key, nil
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// Tracker files TODOs as tickets on one board.
type Tracker struct {
	client    *Client
	boardName string
}

// Tracker returns a publish.Tracker for boardName.
func (c *Client) Tracker(boardName string) *Tracker {
	return &Tracker{client: c, boardName: boardName}
}

var _ publish.Tracker = (*Tracker)(nil)

func (t *Tracker) Name() string {
	return "jira " + projectKey(t.boardName)
}

func (t *Tracker) Existing(ctx context.Context) (map[string]bool, error) {
	issues, err := t.client.SearchProject(ctx, t.boardName)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	for _, issue := range issues {
		if issue.Fields == nil {
			continue
		}
		for _, fp := range publish.ParseFingerprints(issue.Fields.Description) {
			existing[fp] = true
		}
	}
	return existing, nil
}

func (t *Tracker) Create(ctx context.Context, todo models.Todo, fingerprint string) (string, error) {
	labels := []string{Label, "priority-" + string(todo.Priority)}
	return t.client.CreateTicket(ctx, t.boardName, publish.Title(todo), description(todo, fingerprint), labels)
}

// description renders a ticket body in JIRA wiki markup.
func description(todo models.Todo, fingerprint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", todo.Content)
	fmt.Fprintf(&b, "*Location:* {{%s}}\n", todo.Location())
	fmt.Fprintf(&b, "*Priority:* %s\n", todo.Priority)
	if todo.AssignedTo != "" {
		fmt.Fprintf(&b, "*Assigned to:* %s\n", todo.AssignedTo)
	}
	if a := todo.Analysis; a != nil {
		fmt.Fprintf(&b, "*Complexity:* %s (about %.1f hours)\n", a.Complexity, a.EstimatedHours)
	}
	if todo.Context != "" {
		fmt.Fprintf(&b, "\n{noformat}\n%s\n{noformat}\n", todo.Context)
	}

	fmt.Fprintf(&b, "\n----\n%s\n", publish.Marker(fingerprint))
	return b.String()
}
