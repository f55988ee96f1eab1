// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/publish"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// APIURL returns the REST endpoint for a GitHub domain. An empty domain
// means github.com; anything else is treated as GitHub Enterprise.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub client from cfg and verifies the token by
// fetching the authenticated user. An HTTP client stored in ctx under
// oauth2.HTTPClient is used as the base transport.
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	apiURL := APIURL(cfg.Domain)
	logging.Info("github configuration",
		"domain", cfg.Domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.Token))

	return newClient(ctx, cfg.Token, apiURL)
}

func newClient(ctx context.Context, token, apiURL string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	parsedURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}
	client.BaseURL = parsedURL
	client.UploadURL = parsedURL

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, resp, err := client.Users.Get(testCtx, "")
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logging.Error("failed to test github token", "error", err, "status_code", status)
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return &Client{client: client}, nil
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// ListIssuesWithLabel returns every issue in repository, open or closed,
// carrying label. Pull requests are skipped.
func (c *Client) ListIssuesWithLabel(ctx context.Context, repository, label string) ([]*github.Issue, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Labels:      []string{label},
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []*github.Issue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", repository, "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub issues: %w", err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			result = append(result, issue)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("fetched github issues", "repository", repository, "label", label, "count", len(result))
	return result, nil
}

// CreateIssue opens a new issue. GitHub creates missing labels on the fly.
func (c *Client) CreateIssue(ctx context.Context, repository, title, body string, labels []string) (*github.Issue, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	req := &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	}

	issue, _, err := c.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		logging.Error("error creating issue", "repository", repository, "title", title, "error", err)
		return nil, fmt.Errorf("failed to create issue in %s: %w", repository, err)
	}

	logging.Debug("created github issue", "repository", repository, "number", issue.GetNumber())
	return issue, nil
}

// Tracker files TODOs as labelled issues in one repository.
type Tracker struct {
	client     *Client
	repository string
	label      string
}

// Tracker returns a publish.Tracker for repository. Every issue it creates
// carries label plus a "priority:<tier>" label.
func (c *Client) Tracker(repository, label string) *Tracker {
	return &Tracker{client: c, repository: repository, label: label}
}

var _ publish.Tracker = (*Tracker)(nil)

func (t *Tracker) Name() string {
	return "github " + t.repository
}

func (t *Tracker) Existing(ctx context.Context) (map[string]bool, error) {
	issues, err := t.client.ListIssuesWithLabel(ctx, t.repository, t.label)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	for _, issue := range issues {
		for _, fp := range publish.ParseFingerprints(issue.GetBody()) {
			existing[fp] = true
		}
	}
	return existing, nil
}

func (t *Tracker) Create(ctx context.Context, todo models.Todo, fingerprint string) (string, error) {
	labels := []string{t.label, "priority:" + string(todo.Priority)}
	issue, err := t.client.CreateIssue(ctx, t.repository, publish.Title(todo), publish.Body(todo, fingerprint), labels)
	if err != nil {
		return "", err
	}
	if u := issue.GetHTMLURL(); u != "" {
		return u, nil
	}
	return fmt.Sprintf("%s#%d", t.repository, issue.GetNumber()), nil
}
