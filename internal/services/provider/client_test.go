package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *HTTPClient {
	cfg := &config.ProviderConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	}
	c := NewClient(cfg, NewTracker(testLogger()), testLogger()).(*HTTPClient)
	// Keep retry sleeps out of test wall time
	c.backoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return c
}

func TestFetchCatalog(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []models.ModelRecord{
				{ID: "openai/gpt-4", Name: "GPT-4", ContextLength: 8192},
				{ID: "anthropic/claude-3", Name: "Claude 3", ContextLength: 200000},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	snapshot, err := c.FetchCatalog(context.Background())

	require.NoError(t, err)
	assert.Len(t, snapshot.Entries, 2)
	assert.WithinDuration(t, time.Now(), snapshot.FetchedAt, time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchCatalogExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.FetchCatalog(context.Background())

	require.Error(t, err)
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "initial attempt plus three retries")
}

func chatParams() CompletionParams {
	return CompletionParams{
		Model: "openai/gpt-4",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Hello"},
		},
	}
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai/gpt-4", body["model"])

		messages := body["messages"].([]interface{})
		require.Len(t, messages, 1)
		first := messages[0].(map[string]interface{})
		assert.Equal(t, "user", first["role"])
		assert.Equal(t, "Hello", first["content"])

		json.NewEncoder(w).Encode(models.ProviderResponse{
			Model: "openai/gpt-4",
			Choices: []models.Choice{
				{Message: models.ChoiceMessage{Role: "assistant", Content: "Hi"}},
			},
			Usage: models.Usage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	response, err := c.ChatCompletion(context.Background(), chatParams())

	require.NoError(t, err)
	assert.Equal(t, "Hi", response.FirstContent())
	assert.Equal(t, 6, response.Usage.TotalTokens)
}

func TestChatCompletionNoRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.ChatCompletion(context.Background(), chatParams())

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "completion failures are not retried")
}

func TestChatCompletion429RecoveredOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(models.ProviderResponse{
			Choices: []models.Choice{
				{Message: models.ChoiceMessage{Content: "recovered"}},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	response, err := c.ChatCompletion(context.Background(), chatParams())

	require.NoError(t, err)
	assert.Equal(t, "recovered", response.FirstContent())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "exactly one retried call")
}

func TestChatCompletion429TwicePropagates(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.ChatCompletion(context.Background(), chatParams())

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "the single recovery is not repeated")
}

func TestPreRequestWaitWhenQuotaExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ProviderResponse{
			Choices: []models.Choice{
				{Message: models.ChoiceMessage{Content: "ok"}},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	wait := 150 * time.Millisecond
	c.tracker.Exhaust(time.Now().Add(wait))

	started := time.Now()
	_, err := c.ChatCompletion(context.Background(), chatParams())
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, wait, "request must wait out the reset window")
	assert.Less(t, elapsed, wait+time.Second)
}

func TestExtraFieldsOverrideComputed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 0.9, body["temperature"], "extra fields are merged last")
		assert.Equal(t, "high", body["reasoning"].(map[string]interface{})["effort"])

		json.NewEncoder(w).Encode(models.ProviderResponse{})
	}))
	defer server.Close()

	temp := 0.2
	params := chatParams()
	params.Temperature = &temp
	params.ReasoningEffort = "high"
	params.Extra = map[string]interface{}{"temperature": 0.9}

	c := newTestClient(server.URL)
	_, err := c.ChatCompletion(context.Background(), params)
	require.NoError(t, err)
}

func TestChatCompletionValidation(t *testing.T) {
	c := newTestClient("http://unused.invalid")

	_, err := c.ChatCompletion(context.Background(), CompletionParams{Messages: chatParams().Messages})
	assert.ErrorContains(t, err, "model is required")

	_, err = c.ChatCompletion(context.Background(), CompletionParams{Model: "openai/gpt-4"})
	assert.ErrorContains(t, err, "messages must not be empty")
}

func TestTextCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Once upon a time", body["prompt"])

		json.NewEncoder(w).Encode(models.ProviderResponse{
			Choices: []models.Choice{{Text: " there was a gateway"}},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	response, err := c.TextCompletion(context.Background(), CompletionParams{
		Model:  "openai/gpt-4",
		Prompt: "Once upon a time",
	})

	require.NoError(t, err)
	assert.Equal(t, " there was a gateway", response.FirstText())
}

func TestEmbeddedProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "model overloaded"},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.ChatCompletion(context.Background(), chatParams())

	assert.ErrorContains(t, err, "model overloaded")
}

func TestFetchModelEndpointsValidation(t *testing.T) {
	c := newTestClient("http://unused.invalid")

	for _, id := range []string{"openai", "openai/gpt-4:floor", "a/b/c", "/slug", "author/"} {
		_, err := c.FetchModelEndpoints(context.Background(), id)
		assert.ErrorContains(t, err, "expected author/slug", "id %q must be rejected before any request", id)
	}
}

func TestFetchModelEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/openai/gpt-4/endpoints", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": models.ProviderRouteInfo{
				ID: "openai/gpt-4",
				Endpoints: []models.RouteEndpoint{
					{Name: "openai", ProviderName: "OpenAI", ContextLength: 8192},
				},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	info, err := c.FetchModelEndpoints(context.Background(), "openai/gpt-4")

	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4", info.ID)
	require.Len(t, info.Endpoints, 1)
	assert.Equal(t, "OpenAI", info.Endpoints[0].ProviderName)
}

func TestRateLimitStateUpdatedFromResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerRemaining, "7")
		w.Header().Set(headerReset, "42")
		w.Header().Set(headerLimit, "50")
		json.NewEncoder(w).Encode(models.ProviderResponse{})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.ChatCompletion(context.Background(), chatParams())
	require.NoError(t, err)

	state := c.RateLimit()
	assert.Equal(t, 7, state.Remaining)
	assert.Equal(t, 50, state.Total)
	assert.WithinDuration(t, time.Now().Add(42*time.Second), state.ResetAt, time.Second)
}
