package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/pkg/models"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        config.AIConfig
	endpoint   string
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// headerTransport sets a fixed header on every request.
type headerTransport struct {
	name  string
	value string
	base  http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(t.name, t.value)
	return t.base.RoundTrip(clone)
}

// NewClient builds a client for the configured provider. OpenAI and keyed
// local deployments use bearer authentication; Azure uses the api-key
// header and a deployment-scoped URL.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if err := config.ValidateAIConfig(cfg); err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}

	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	var (
		transport http.RoundTripper = base
		endpoint                    = apiBase + "/chat/completions"
	)

	switch strings.ToLower(cfg.Provider) {
	case config.ProviderAzure:
		transport = &headerTransport{name: "api-key", value: cfg.APIKey, base: base}
		endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			apiBase, url.PathEscape(cfg.Model), url.QueryEscape(cfg.APIVersion))
	default:
		if cfg.APIKey != "" {
			transport = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}),
				Base:   base,
			}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logging.Debug("ai client configured",
		"provider", cfg.Provider,
		"endpoint", endpoint,
		"model", cfg.Model,
		"api_key", logging.MaskSensitive(cfg.APIKey))

	return &Client{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

// AnalyzeTodo asks the model for a JSON analysis of one TODO.
func (c *Client) AnalyzeTodo(ctx context.Context, id string, todo models.Todo, codeContext string) (*models.Analysis, error) {
	reply, err := c.complete(ctx, analysisMessages(todo, codeContext))
	if err != nil {
		return nil, err
	}

	raw := extractJSON(reply)
	if err := ValidateAnalysis(raw); err != nil {
		return nil, err
	}

	var analysis models.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	analysis.TodoID = id
	if analysis.SuggestedPriority == "" {
		analysis.SuggestedPriority = todo.Priority
	}
	return &analysis, nil
}

// PlanWork asks the model to schedule the analysed TODOs.
func (c *Client) PlanWork(ctx context.Context, analyses []models.Analysis) (*models.WorkPlan, error) {
	messages, err := planMessages(analyses)
	if err != nil {
		return nil, err
	}

	reply, err := c.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(reply)
	if err := ValidateWorkPlan(raw); err != nil {
		return nil, err
	}

	var plan models.WorkPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode work plan: %w", err)
	}
	return &plan, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	payload := chatRequest{
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	// Azure selects the model through the deployment in the URL.
	if !strings.EqualFold(c.cfg.Provider, config.ProviderAzure) {
		payload.Model = c.cfg.Model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call %s api: %w", c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s api returned status %d: %s", c.cfg.Provider, resp.StatusCode, truncate(string(data), 200))
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%s api error: %s", c.cfg.Provider, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s api returned no choices", c.cfg.Provider)
	}

	return decoded.Choices[0].Message.Content, nil
}

// extractJSON strips Markdown code fences and any prose around the outermost
// JSON object.
func extractJSON(reply string) []byte {
	s := strings.TrimSpace(reply)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return []byte(s)
}
