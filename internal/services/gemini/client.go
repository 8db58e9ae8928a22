package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dharter89/GAAP/internal/services/retry"
)

const (
	defaultModel       = "gemini-2.5-pro"
	defaultLocation    = "us-central1"
	defaultHTTPTimeout = 120 * time.Second
	jsonMIMEType       = "application/json"
)

// Config captures the settings for the Google GenAI backend. When Vertex is
// set the client authenticates with application default credentials against
// Project/Location; otherwise APIKey selects the Gemini API.
type Config struct {
	APIKey         string
	Model          string
	Vertex         bool
	Project        string
	Location       string
	BaseURL        string
	TimeoutSeconds int
}

// Client issues audit prompts to Gemini models.
type Client struct {
	cfg    Config
	models generator
	retry  retry.Policy
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the attempt count (default 2, one retry).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.Attempts = attempts }
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper replaces the retry wait, for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.Sleep = sleeper }
}

// NewClient constructs a Gemini client. The genai client is created eagerly so
// credential problems surface at startup rather than on the first audit.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Project = strings.TrimSpace(cfg.Project)
	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	clientCfg := &genai.ClientConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Vertex {
		if cfg.Project == "" {
			return nil, errors.New("gemini client: vertex project required")
		}
		if cfg.Location == "" {
			cfg.Location = defaultLocation
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("gemini client: api key required")
		}
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	}

	gc, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newClient(cfg, gc.Models, opts...), nil
}

func newClient(cfg Config, models generator, opts ...Option) *Client {
	client := &Client{
		cfg:    cfg,
		models: models,
		retry:  retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name identifies the provider and model for logs and reports.
func (c *Client) Name() string {
	backend := "gemini"
	if c.cfg.Vertex {
		backend = "vertex"
	}
	return backend + ":" + c.cfg.Model
}

// Complete sends the prompts and returns the model's text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, "", "gemini complete")
}

// CompleteJSON sends the prompts asking for an application/json reply.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, jsonMIMEType, "gemini complete json")
}

// HealthCheck issues a minimal prompt to confirm credentials and model access.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.generate(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`, jsonMIMEType, "gemini health")
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ReplaceAll(content, " ", ""), `"ok":true`) {
		return fmt.Errorf("gemini health: unexpected response %q", content)
	}
	return nil
}

type emptyResponseError struct {
	Op           string
	FinishReason string
}

func (e *emptyResponseError) Error() string {
	return fmt.Sprintf("%s: empty response (finish_reason=%q)", e.Op, e.FinishReason)
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt, mimeType, op string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", fmt.Errorf("%s: user prompt required", op)
	}
	if c.models == nil {
		return "", fmt.Errorf("%s: client not initialized", op)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: mimeType,
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}

	var text string
	err := c.retry.Do(ctx, op, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		text = strings.TrimSpace(resp.Text())
		if text == "" {
			return &emptyResponseError{Op: op, FinishReason: finishReason(resp)}
		}
		return nil
	}, classify)
	if err != nil {
		return "", err
	}
	return text, nil
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

// StatusCode returns the HTTP status reported by the GenAI API, or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// classify retries empty responses, transient API statuses and timeouts.
func classify(err error) retry.Decision {
	var emptyErr *emptyResponseError
	if errors.As(err, &emptyErr) {
		return retry.Decision{Retry: true}
	}
	if code := StatusCode(err); code != 0 {
		return retry.Decision{Retry: retry.TransientStatus(code)}
	}
	return retry.Decision{Retry: retry.IsTimeout(err)}
}
