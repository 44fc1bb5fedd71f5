// Package echo provides an offline transport that echoes back input messages.
// It implements domain.Transport without making external API calls, providing
// a fixed model registry and deterministic completions for tests and local runs.
package echo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/observability"
)

// Model identifiers served by the echo transport.
const (
	FreeModelID = "echo/echo-small:free"
	PaidModelID = "echo/echo-large"
)

// Transport implements domain.Transport in memory.
type Transport struct {
	mu     sync.RWMutex
	models []domain.RemoteModel
	byID   map[string]bool
}

// NewTransport creates an echo transport with the default registry.
func NewTransport() *Transport {
	t := &Transport{}
	t.SetModels(DefaultModels())
	return t
}

// DefaultModels returns one free and one paid model.
func DefaultModels() []domain.RemoteModel {
	return []domain.RemoteModel{
		{
			ID:            FreeModelID,
			Name:          "Echo Small (free)",
			ContextLength: 8192,
			Pricing:       &domain.RemotePrice{Prompt: "0", Completion: "0"},
		},
		{
			ID:            PaidModelID,
			Name:          "Echo Large",
			ContextLength: 32768,
			Pricing:       &domain.RemotePrice{Prompt: "0.000001", Completion: "0.000002"},
		},
	}
}

// SetModels replaces the registry. Requests for models outside it fail with 404.
func (t *Transport) SetModels(models []domain.RemoteModel) {
	byID := make(map[string]bool, len(models))
	for _, m := range models {
		byID[m.ID] = true
	}

	t.mu.Lock()
	t.models = append([]domain.RemoteModel(nil), models...)
	t.byID = byID
	t.mu.Unlock()
}

// ListModels returns a copy of the registry.
func (t *Transport) ListModels(_ context.Context) ([]domain.RemoteModel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.RemoteModel(nil), t.models...), nil
}

// ChatCompletions echoes the request messages back as the assistant reply.
func (t *Transport) ChatCompletions(
	ctx context.Context,
	req *domain.ChatCompletionRequest,
) (*domain.ChatCompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request aborted: %w", err)
	}

	t.mu.RLock()
	known := t.byID[req.Model]
	t.mu.RUnlock()
	if !known {
		return nil, domain.NewAPIError(404, fmt.Sprintf("Model not found: %s", req.Model))
	}

	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	content := buildEchoContent(req.Messages)
	if req.ResponseFormat != nil && req.ResponseFormat.Type == domain.ResponseFormatJSON {
		content = buildJSONContent(req.Messages)
	}

	promptTokens := countTokens(buildEchoContent(req.Messages))
	completionTokens := countTokens(content)

	logger.Debug("echo completed",
		observability.Int("prompt_tokens", promptTokens),
		observability.Int("completion_tokens", completionTokens),
	)

	now := time.Now()
	return &domain.ChatCompletionResponse{
		ID:      fmt.Sprintf("echo-%d", now.UnixNano()),
		Model:   req.Model,
		Created: now.Unix(),
		Choices: []domain.Choice{{
			Index:        0,
			Message:      domain.Message{Role: domain.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: &domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// buildEchoContent constructs the echo response from request messages.
func buildEchoContent(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	return builder.String()
}

// buildJSONContent returns the last message content as a JSON object.
func buildJSONContent(messages []domain.Message) string {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	data, _ := json.Marshal(map[string]string{"echo": last})
	return string(data)
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
