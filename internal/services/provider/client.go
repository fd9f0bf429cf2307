package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Client defines the outbound provider API surface
type Client interface {
	FetchCatalog(ctx context.Context) (*models.CatalogSnapshot, error)
	ChatCompletion(ctx context.Context, params CompletionParams) (*models.ProviderResponse, error)
	TextCompletion(ctx context.Context, params CompletionParams) (*models.ProviderResponse, error)
	FetchModelEndpoints(ctx context.Context, modelID string) (*models.ProviderRouteInfo, error)
	RateLimit() models.RateLimitState
}

// RoutePreferences are provider routing preferences forwarded verbatim
// in the request body
type RoutePreferences struct {
	Order           []string `json:"order,omitempty"`
	AllowFallbacks  *bool    `json:"allow_fallbacks,omitempty"`
	IgnoreProviders []string `json:"ignore,omitempty"`
	DataCollection  string   `json:"data_collection,omitempty"`
}

// CompletionParams carries everything a completion request can set.
// Extra fields are merged into the body last so they can override any
// computed field.
type CompletionParams struct {
	Model           string
	Messages        []models.Message
	Prompt          string
	Temperature     *float64
	MaxTokens       int
	Seed            *int
	ReasoningEffort string
	Provider        *RoutePreferences
	Extra           map[string]interface{}
}

// APIError is a non-2xx response from the provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.StatusCode, e.Body)
}

const retryAfterDefault = 60 * time.Second

// HTTPClient implements Client against an OpenRouter-compatible HTTP API
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracker    *Tracker
	backoff    []time.Duration
	logger     *logrus.Logger
}

// NewClient creates a new provider API client
func NewClient(cfg *config.ProviderConfig, tracker *Tracker, logger *logrus.Logger) Client {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		tracker: tracker,
		backoff: DefaultBackoff,
		logger:  logger,
	}
}

// RateLimit returns the last observed rate-limit state
func (c *HTTPClient) RateLimit() models.RateLimitState {
	return c.tracker.State()
}

// FetchCatalog fetches the full model catalog, retrying over the fixed
// backoff schedule
func (c *HTTPClient) FetchCatalog(ctx context.Context) (*models.CatalogSnapshot, error) {
	var listing struct {
		Data []models.ModelRecord `json:"data"`
	}

	err := withRetry(ctx, c.backoff, func() error {
		body, err := c.do(ctx, http.MethodGet, "/models", nil)
		if err != nil {
			c.logger.WithError(err).Warn("Catalog fetch attempt failed")
			return err
		}
		return json.Unmarshal(body, &listing)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	return &models.CatalogSnapshot{
		Entries:   listing.Data,
		FetchedAt: time.Now(),
	}, nil
}

// ChatCompletion issues a single chat completion request. Transient
// failures are not retried here; only the 429 recovery in do applies.
func (c *HTTPClient) ChatCompletion(ctx context.Context, params CompletionParams) (*models.ProviderResponse, error) {
	if params.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("messages must not be empty")
	}

	reqBody := c.buildBody(params)
	reqBody["messages"] = wireMessages(params.Messages)
	mergeExtra(reqBody, params.Extra)

	return c.completion(ctx, "/chat/completions", reqBody)
}

// TextCompletion issues a single prompt completion request
func (c *HTTPClient) TextCompletion(ctx context.Context, params CompletionParams) (*models.ProviderResponse, error) {
	if params.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if params.Prompt == "" {
		return nil, fmt.Errorf("prompt must not be empty")
	}

	reqBody := c.buildBody(params)
	reqBody["prompt"] = params.Prompt
	mergeExtra(reqBody, params.Extra)

	return c.completion(ctx, "/completions", reqBody)
}

// FetchModelEndpoints lists the provider endpoints serving one model.
// The id must be a bare author/slug; suffixed or malformed ids are
// rejected before any request is made.
func (c *HTTPClient) FetchModelEndpoints(ctx context.Context, modelID string) (*models.ProviderRouteInfo, error) {
	parts := strings.Split(modelID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], ":") {
		return nil, fmt.Errorf("invalid model id %q: expected author/slug format", modelID)
	}

	var listing struct {
		Data models.ProviderRouteInfo `json:"data"`
	}

	path := fmt.Sprintf("/models/%s/%s/endpoints", parts[0], parts[1])
	err := withRetry(ctx, c.backoff, func() error {
		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			c.logger.WithError(err).WithField("model", modelID).Warn("Endpoint fetch attempt failed")
			return err
		}
		return json.Unmarshal(body, &listing)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch endpoints for %s: %w", modelID, err)
	}

	return &listing.Data, nil
}

func (c *HTTPClient) completion(ctx context.Context, path string, reqBody map[string]interface{}) (*models.ProviderResponse, error) {
	body, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, err
	}

	var response models.ProviderResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if response.Error != nil && response.Error.Message != "" {
		return nil, fmt.Errorf("provider error: %s", response.Error.Message)
	}

	return &response, nil
}

// buildBody assembles the computed request fields shared by both
// completion endpoints
func (c *HTTPClient) buildBody(params CompletionParams) map[string]interface{} {
	body := map[string]interface{}{
		"model": params.Model,
	}
	if params.Temperature != nil {
		body["temperature"] = *params.Temperature
	}
	if params.MaxTokens > 0 {
		body["max_tokens"] = params.MaxTokens
	}
	if params.Seed != nil {
		body["seed"] = *params.Seed
	}
	if params.ReasoningEffort != "" {
		body["reasoning"] = map[string]interface{}{"effort": params.ReasoningEffort}
	}
	if params.Provider != nil {
		body["provider"] = params.Provider
	}
	return body
}

// mergeExtra applies free-form fields last so they win over computed ones
func mergeExtra(body map[string]interface{}, extra map[string]interface{}) {
	for k, v := range extra {
		body[k] = v
	}
}

func wireMessages(messages []models.Message) []map[string]interface{} {
	wire := make([]map[string]interface{}, len(messages))
	for i, msg := range messages {
		m := map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if msg.ToolName != "" {
			m["name"] = msg.ToolName
		}
		wire[i] = m
	}
	return wire
}

// do issues one request with rate-limit handling: wait out an exhausted
// quota before sending, record the response headers, and on a 429 sleep
// for retry-after and re-issue the same request exactly once.
func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody interface{}) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		if payload, err = json.Marshal(reqBody); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if err := c.waitIfLimited(ctx); err != nil {
		return nil, err
	}

	body, status, header, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	c.tracker.Observe(header)

	if status == http.StatusTooManyRequests {
		delay := retryAfter(header)
		c.tracker.Exhaust(time.Now().Add(delay))
		c.logger.WithFields(logrus.Fields{
			"path":        path,
			"retry_after": delay,
		}).Warn("Rate limited by provider, retrying once")

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}

		body, status, header, err = c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		c.tracker.Observe(header)
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: excerpt(body)}
	}

	return body, nil
}

// waitIfLimited blocks until the quota window resets when no requests
// remain. Callers block for the wait; there is no queueing.
func (c *HTTPClient) waitIfLimited(ctx context.Context) error {
	delay := c.tracker.Delay(time.Now())
	if delay <= 0 {
		return nil
	}

	c.logger.WithField("wait", delay).Info("Request quota exhausted, waiting for reset")
	return sleep(ctx, delay)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, payload []byte) ([]byte, int, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, resp.Header, nil
}

func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return retryAfterDefault
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func excerpt(body []byte) string {
	const limit = 512
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
