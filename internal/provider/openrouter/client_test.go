package openrouter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/provider/openrouter"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *openrouter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := openrouter.NewClient(openrouter.Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		SiteURL:          "https://example.com",
		SiteName:         "Example",
		ListTimeoutMS:    200,
		RequestTimeoutMS: 200,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	client, err := openrouter.NewClient(openrouter.Config{})

	require.Error(t, err)
	require.Nil(t, client)
	require.Contains(t, err.Error(), "API key is required")
}

func TestClient_ListModels(t *testing.T) {
	t.Run("should send auth headers and decode models", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/models", r.URL.Path)
			require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.Equal(t, "https://example.com", r.Header.Get("HTTP-Referer"))
			require.Equal(t, "Example", r.Header.Get("X-Title"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"data":[
				{"id":"meta-llama/llama-3-8b:free","name":"Llama 3 8B","context_length":8192,
				 "pricing":{"prompt":"0","completion":"0"}},
				{"id":"openai/gpt-4o","name":"GPT-4o","top_provider":{"context_length":128000},
				 "pricing":{"prompt":"0.000005","completion":"0.000015"}}
			]}`)
		})

		models, err := client.ListModels(context.Background())

		require.NoError(t, err)
		require.Len(t, models, 2)
		require.Equal(t, "meta-llama/llama-3-8b:free", models[0].ID)
		require.Equal(t, 8192, models[0].ContextLength)
		require.Equal(t, 128000, models[1].TopProvider.ContextLength)
		require.Equal(t, "0.000015", models[1].Pricing.Completion)
	})

	t.Run("should surface upstream error message and status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"No auth credentials found","code":401}}`)
		})

		models, err := client.ListModels(context.Background())

		require.Nil(t, models)
		var apiErr *domain.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "No auth credentials found", apiErr.Message)
		require.False(t, domain.IsRetriable(err))
	})

	t.Run("should fall back to generic message for unparseable body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "<html>down</html>")
		})

		_, err := client.ListModels(context.Background())

		require.Error(t, err)
		require.Equal(t, "HTTP 503: Service Unavailable", err.Error())
		require.True(t, domain.IsRetriable(err))
	})

	t.Run("should report timeout distinctly", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		_, err := client.ListModels(context.Background())

		require.ErrorIs(t, err, domain.ErrRequestTimeout)
		require.Equal(t, domain.CodeTimeout, domain.ErrorCode(err))
	})
}

func TestClient_ChatCompletions(t *testing.T) {
	t.Run("should send payload and decode completion", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.Equal(t, "Example", r.Header.Get("X-Title"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "meta-llama/llama-3-8b:free", body["model"])
			require.InDelta(t, 0.2, body["temperature"], 1e-9)
			require.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])
			require.Len(t, body["messages"], 2)

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"id":"gen-1","object":"chat.completion","created":1,"model":"meta-llama/llama-3-8b:free",
				"choices":[{"index":0,"finish_reason":"stop",
					"message":{"role":"assistant","content":"{\"ok\":true}"}}],
				"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}
			}`)
		})

		temperature := 0.2
		resp, err := client.ChatCompletions(context.Background(), &domain.ChatCompletionRequest{
			Model: "meta-llama/llama-3-8b:free",
			Messages: []domain.Message{
				{Role: domain.RoleSystem, Content: "Reply in JSON"},
				{Role: domain.RoleUser, Content: "Hello"},
			},
			Temperature:    &temperature,
			ResponseFormat: &domain.ResponseFormat{Type: domain.ResponseFormatJSON},
		})

		require.NoError(t, err)
		require.Equal(t, "gen-1", resp.ID)
		require.Len(t, resp.Choices, 1)
		require.Equal(t, `{"ok":true}`, resp.Choices[0].Message.Content)
		require.Equal(t, "stop", resp.Choices[0].FinishReason)
		require.Equal(t, 16, resp.Usage.TotalTokens)
	})

	t.Run("should not retry and classify 429 as retriable", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit exceeded","code":429}}`)
		})

		_, err := client.ChatCompletions(context.Background(), &domain.ChatCompletionRequest{
			Model:    "meta-llama/llama-3-8b:free",
			Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
		})

		require.Equal(t, 1, calls)
		require.True(t, domain.IsRetriable(err))
		require.Equal(t, http.StatusTooManyRequests, domain.StatusCode(err))
		require.Contains(t, err.Error(), "Rate limit exceeded")
	})

	t.Run("should detect removed models", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"Model not found: old/model","code":404}}`)
		})

		_, err := client.ChatCompletions(context.Background(), &domain.ChatCompletionRequest{
			Model:    "old/model",
			Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
		})

		require.True(t, domain.IsInvalidModel(err))
		require.False(t, domain.IsRetriable(err))
	})

	t.Run("should report timeout distinctly from network errors", func(t *testing.T) {
		client := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		_, err := client.ChatCompletions(context.Background(), &domain.ChatCompletionRequest{
			Model:    "openai/gpt-4o",
			Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
		})

		require.True(t, errors.Is(err, domain.ErrRequestTimeout))
		require.False(t, domain.IsRetriable(err))
	})

	t.Run("should reject nil request", func(t *testing.T) {
		client := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

		resp, err := client.ChatCompletions(context.Background(), nil)

		require.Error(t, err)
		require.Nil(t, resp)
		require.Contains(t, err.Error(), "request cannot be nil")
	})
}
