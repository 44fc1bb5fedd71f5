// Package openrouter implements domain.Transport against an OpenRouter-style
// aggregator. Each call is a single attempt; retries belong to the executor.
package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/observability"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1"
	defaultListTimeout    = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
	maxErrorBodyBytes     = 64 << 10
)

// Client talks to the aggregator API.
type Client struct {
	apiKey         string
	baseURL        string
	siteURL        string
	siteName       string
	listTimeout    time.Duration
	requestTimeout time.Duration
	httpClient     *http.Client
	sdk            openai.Client
}

// NewClient creates a new aggregator client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	c := &Client{
		apiKey:         config.APIKey,
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		siteURL:        config.SiteURL,
		siteName:       config.SiteName,
		listTimeout:    millisOr(config.ListTimeoutMS, defaultListTimeout),
		requestTimeout: millisOr(config.RequestTimeoutMS, defaultRequestTimeout),
		httpClient:     &http.Client{},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL + "/"),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
		option.WithMiddleware(upstreamErrors),
	}
	for key, value := range c.attributionHeaders() {
		opts = append(opts, option.WithHeader(key, value))
	}
	c.sdk = openai.NewClient(opts...)

	return c, nil
}

func millisOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) attributionHeaders() map[string]string {
	headers := make(map[string]string, 2)
	if c.siteURL != "" {
		headers["HTTP-Referer"] = c.siteURL
	}
	if c.siteName != "" {
		headers["X-Title"] = c.siteName
	}
	return headers
}

type modelsResponse struct {
	Data []domain.RemoteModel `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// ListModels fetches GET /models.
func (c *Client) ListModels(ctx context.Context) ([]domain.RemoteModel, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range c.attributionHeaders() {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err, c.listTimeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp)
	}

	var payload modelsResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", decodeErr)
	}

	observability.FromContext(ctx).Debug("listed models", observability.Int("count", len(payload.Data)))
	return payload.Data, nil
}

// ChatCompletions sends POST /chat/completions through the OpenAI-compatible SDK.
func (c *Client) ChatCompletions(
	ctx context.Context,
	req *domain.ChatCompletionRequest,
) (*domain.ChatCompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling chat completions", observability.String("model_id", req.Model))

	params, opts, err := toSDKParams(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.sdk.Chat.Completions.New(callCtx, params, opts...)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, classifyTransportError(ctx, err, c.requestTimeout)
	}

	return toDomainResponse(resp), nil
}

// upstreamErrors turns non-2xx replies into *domain.APIError before the SDK
// sees them, so the upstream message survives intact.
func upstreamErrors(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	resp, err := next(req)
	if err != nil || resp.StatusCode < 300 {
		return resp, err
	}
	defer resp.Body.Close()
	return nil, parseError(resp)
}

// parseError converts an error reply into *domain.APIError, falling back to
// "HTTP <status>" when the body carries no message.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var envelope errorEnvelope
	message := ""
	if json.Unmarshal(body, &envelope) == nil {
		message = envelope.Error.Message
	}

	return domain.NewAPIError(resp.StatusCode, message)
}

// classifyTransportError separates our own per-call timeout from caller
// cancellation and plain network failures.
func classifyTransportError(parent context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w after %s", domain.ErrRequestTimeout, timeout)
	}
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("request aborted: %w", parentErr)
	}
	return fmt.Errorf("request failed: %w", err)
}
