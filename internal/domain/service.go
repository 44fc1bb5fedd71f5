package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/freeroute/internal/observability"
)

// ChatOptions are the convenience knobs of Chat and ChatJSON.
type ChatOptions struct {
	Temperature       *float64
	MaxTokens         *int
	AllowPaidFallback *bool
}

// RouterService is the task-oriented entry point that wires catalog, quota,
// telemetry, policy and executor together.
type RouterService struct {
	catalog   *CatalogService
	quota     *QuotaTracker
	telemetry *Telemetry
	policy    *PolicyEngine
	executor  *Executor
}

// NewRouterService creates the facade (DI constructor).
func NewRouterService(
	catalog *CatalogService,
	quota *QuotaTracker,
	telemetry *Telemetry,
	policy *PolicyEngine,
	executor *Executor,
) *RouterService {
	return &RouterService{
		catalog:   catalog,
		quota:     quota,
		telemetry: telemetry,
		policy:    policy,
		executor:  executor,
	}
}

// ExecuteResult runs the task and returns the structured result without
// turning failures into errors.
func (s *RouterService) ExecuteResult(ctx context.Context, task *TaskRequest) *ExecutionResult {
	return s.executor.Execute(ctx, task)
}

// Execute runs the task and returns an *ExecutionError on total failure.
func (s *RouterService) Execute(ctx context.Context, task *TaskRequest) (*TaskResponse, error) {
	result := s.executor.Execute(ctx, task)
	if !result.Success() {
		return nil, result.Err
	}
	return result.Response, nil
}

// Chat sends messages and returns the assistant's text.
func (s *RouterService) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	resp, err := s.Execute(ctx, &TaskRequest{
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Requirements: TaskRequirements{
			AllowPaidFallback: opts.AllowPaidFallback,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// ChatJSON requests structured output and decodes the assistant content into out.
func (s *RouterService) ChatJSON(ctx context.Context, messages []Message, opts ChatOptions, out interface{}) error {
	if out == nil {
		return errors.New("output target cannot be nil")
	}

	resp, err := s.Execute(ctx, &TaskRequest{
		Messages:       messages,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: ResponseFormatJSON},
		Requirements: TaskRequirements{
			NeedsJSON:         true,
			AllowPaidFallback: opts.AllowPaidFallback,
		},
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(resp.Message.Content), out); err != nil {
		observability.FromContext(ctx).Warn("assistant returned invalid JSON",
			observability.String("model_used", resp.ModelUsed),
			observability.Error(err))
		return fmt.Errorf("failed to decode JSON response from %s: %w", resp.ModelUsed, err)
	}
	return nil
}

// QuotaStatus reports free-tier usage.
func (s *RouterService) QuotaStatus(ctx context.Context) (QuotaStatus, error) {
	return s.quota.Status(ctx)
}

// WaitForQuota blocks until free-tier quota frees up or timeout elapses.
func (s *RouterService) WaitForQuota(ctx context.Context, timeout time.Duration) (bool, error) {
	return s.quota.WaitForQuota(ctx, timeout)
}

// TelemetrySummary aggregates recorded events.
func (s *RouterService) TelemetrySummary() TelemetrySummary {
	return s.telemetry.Summary()
}

// HealthScores returns a score for every model seen in telemetry.
func (s *RouterService) HealthScores() []ModelHealthScore {
	return s.telemetry.AllHealthScores()
}

// RefreshCatalog forces a catalog refresh.
func (s *RouterService) RefreshCatalog(ctx context.Context) error {
	return s.catalog.Refresh(ctx)
}

// CatalogStats describes the catalog cache.
func (s *RouterService) CatalogStats() CatalogStats {
	return s.catalog.Stats()
}

// Models returns every catalog model.
func (s *RouterService) Models(ctx context.Context) ([]ModelMetadata, error) {
	return s.catalog.AllModels(ctx)
}

// Policy returns the routing weights.
func (s *RouterService) Policy() RoutingPolicy {
	return s.policy.Policy()
}

// UpdatePolicy swaps the routing weights.
func (s *RouterService) UpdatePolicy(policy RoutingPolicy) {
	s.policy.UpdatePolicy(policy)
}

// ResetQuota clears quota counters.
func (s *RouterService) ResetQuota(ctx context.Context) error {
	return s.quota.Reset(ctx)
}

// ClearTelemetry drops recorded events.
func (s *RouterService) ClearTelemetry() {
	s.telemetry.Clear()
}
