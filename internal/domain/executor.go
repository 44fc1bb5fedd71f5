package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/davidbz/freeroute/internal/observability"
)

var (
	errEmptyCompletion = errors.New("completion returned no choices")
	errQuotaExhausted  = errors.New("free tier quota exceeded")
)

// ExecutionResult is the outcome of one Execute call. Exactly one of Response
// and Err is set; use Success to discriminate.
type ExecutionResult struct {
	Response    *TaskResponse   `json:"response,omitempty"`
	Err         *ExecutionError `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	ModelsTried []string        `json:"models_tried"`
}

// Success reports whether the execution produced a response.
func (r *ExecutionResult) Success() bool {
	return r.Response != nil
}

func succeeded(resp *TaskResponse, attempts int, tried []string) *ExecutionResult {
	return &ExecutionResult{Response: resp, Attempts: attempts, ModelsTried: tried}
}

func failed(code, message string, retriable bool, attempts int, tried []string) *ExecutionResult {
	if tried == nil {
		tried = []string{}
	}
	return &ExecutionResult{
		Err:         &ExecutionError{Code: code, Message: message, Retriable: retriable},
		Attempts:    attempts,
		ModelsTried: tried,
	}
}

// Executor runs a task against ranked candidates, retrying transient failures
// on the same model and failing over to the next one otherwise.
//
// The total time budget is checked between candidates only; a request already
// in flight is bounded by the transport timeout, not by the budget.
type Executor struct {
	transport Transport
	policy    CandidateSource
	quota     QuotaGate
	telemetry EventRecorder
	catalog   ModelCatalog
	now       Clock

	mu     sync.RWMutex
	config ExecutionConfig
}

// NewExecutor creates an executor (DI constructor).
func NewExecutor(
	transport Transport,
	policy CandidateSource,
	quota QuotaGate,
	telemetry EventRecorder,
	catalog ModelCatalog,
	config ExecutionConfig,
	opts ...Option,
) *Executor {
	s := applyOptions(opts)
	return &Executor{
		transport: transport,
		policy:    policy,
		quota:     quota,
		telemetry: telemetry,
		catalog:   catalog,
		now:       s.now,
		config:    normalizeConfig(config),
	}
}

func normalizeConfig(cfg ExecutionConfig) ExecutionConfig {
	def := DefaultExecutionConfig()
	if cfg.MaxFailovers <= 0 {
		cfg.MaxFailovers = def.MaxFailovers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxTotalTime <= 0 {
		cfg.MaxTotalTime = def.MaxTotalTime
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return cfg
}

// Config returns the current execution bounds.
func (e *Executor) Config() ExecutionConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// UpdateConfig replaces the execution bounds; zero fields take defaults.
func (e *Executor) UpdateConfig(cfg ExecutionConfig) {
	e.mu.Lock()
	e.config = normalizeConfig(cfg)
	e.mu.Unlock()
}

// BackoffDelay returns the wait before retry index retry (0-based):
// min(initial*2^retry, max) plus up to 30% jitter.
func (e *Executor) BackoffDelay(retry int) time.Duration {
	b := NewRetryBackOff(e.Config())
	b.retry = retry
	return b.NextBackOff()
}

// Execute runs the task and never returns a nil result.
func (e *Executor) Execute(ctx context.Context, task *TaskRequest) *ExecutionResult {
	ctx = observability.EnsureRequestID(ctx)
	logger := observability.FromContext(ctx)

	if task == nil || len(task.Messages) == 0 {
		return failed(CodeInvalid, "task must contain at least one message", false, 0, nil)
	}

	cfg := e.Config()
	start := e.now()

	quotaAvailable, err := e.quota.IsAvailable(ctx)
	if err != nil {
		logger.Warn("quota check failed, treating free tier as unavailable", observability.Error(err))
		quotaAvailable = false
	}

	candidates, err := e.policy.Candidates(ctx, task.Requirements, quotaAvailable)
	if err != nil {
		if ctx.Err() != nil {
			return e.canceled(ctx, 0, nil)
		}
		logger.Error("candidate selection failed", observability.Error(err))
		return failed(CodeNoModels, fmt.Sprintf("failed to select models: %v", err), true, 0, nil)
	}
	if len(candidates) == 0 {
		logger.Warn("no models available for request", observability.Bool("quota_available", quotaAvailable))
		return failed(CodeNoModels, "no models available for this request", false, 0, nil)
	}

	logger.Info("candidates selected",
		observability.Int("count", len(candidates)),
		observability.String("top_model", candidates[0].Model.ID),
		observability.String("top_reason", candidates[0].Reason),
		observability.Bool("quota_available", quotaAvailable))

	attempts := 0
	tried := make([]string, 0, len(candidates))

	for i, candidate := range candidates {
		if i >= cfg.MaxFailovers {
			break
		}
		model := candidate.Model

		if ctx.Err() != nil {
			return e.canceled(ctx, attempts, tried)
		}

		if elapsed := e.now().Sub(start); elapsed > cfg.MaxTotalTime {
			e.telemetry.Log(ctx, TelemetryEvent{
				Type:         EventError,
				ModelID:      model.ID,
				IsFree:       model.IsFree,
				ErrorCode:    CodeTimeout,
				ErrorMessage: "total execution time exceeded",
			})
			logger.Warn("execution budget exceeded",
				observability.Duration("elapsed", elapsed),
				observability.Duration("budget", cfg.MaxTotalTime))
			return failed(CodeTimeout, "total execution time exceeded", true, attempts, tried)
		}

		tried = append(tried, model.ID)

		if model.IsFree {
			ok, acquireErr := e.quota.TryAcquire(ctx)
			if acquireErr != nil || !ok {
				e.logQuotaSkip(ctx, model, acquireErr)
				continue
			}
		}

		resp, n, callErr := e.executeWithRetries(ctx, task, model, cfg)
		attempts += n
		if callErr == nil {
			resp.FailoverCount = i
			logger.Info("execution succeeded",
				observability.String("model_used", model.ID),
				observability.Int("attempts", attempts),
				observability.Int("failovers", i))
			return succeeded(resp, attempts, tried)
		}

		if ctx.Err() != nil {
			return e.canceled(ctx, attempts, tried)
		}

		if i < len(candidates)-1 {
			e.telemetry.Log(ctx, TelemetryEvent{
				Type:          EventFallback,
				ModelID:       model.ID,
				IsFree:        model.IsFree,
				FailoverCount: i + 1,
			})
		}

		if IsInvalidModel(callErr) {
			logger.Warn("model no longer valid, refreshing catalog",
				observability.String("model_id", model.ID))
			if refreshErr := e.catalog.Refresh(ctx); refreshErr != nil {
				logger.Error("catalog refresh after invalid model failed", observability.Error(refreshErr))
			}
		}
	}

	logger.Error("all model attempts failed",
		observability.Int("attempts", attempts),
		observability.Strings("models_tried", tried))
	return failed(CodeAllFailed, "all model attempts failed", false, attempts, tried)
}

func (e *Executor) canceled(ctx context.Context, attempts int, tried []string) *ExecutionResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failed(CodeTimeout, "context deadline exceeded", true, attempts, tried)
	}
	return failed(CodeCanceled, "execution canceled", false, attempts, tried)
}

func (e *Executor) logQuotaSkip(ctx context.Context, model ModelMetadata, err error) {
	message := errQuotaExhausted.Error()
	if err != nil {
		message = fmt.Sprintf("quota check failed: %v", err)
	}
	e.telemetry.Log(ctx, TelemetryEvent{
		Type:         EventError,
		ModelID:      model.ID,
		IsFree:       model.IsFree,
		ErrorCode:    CodeQuotaExceeded,
		ErrorMessage: message,
	})
}

// executeWithRetries tries one model up to MaxRetries times. It returns the
// number of requests actually sent. Every free-tier attempt after the first
// acquires its own quota slot.
func (e *Executor) executeWithRetries(
	ctx context.Context,
	task *TaskRequest,
	model ModelMetadata,
	cfg ExecutionConfig,
) (*TaskResponse, int, error) {
	ctx = observability.WithModel(ctx, model.ID)
	logger := observability.FromContext(ctx)

	payload := buildPayload(task, model.ID)
	requestChars := messageChars(task.Messages)

	var result *TaskResponse
	sent := 0

	operation := func() error {
		if model.IsFree && sent > 0 {
			ok, err := e.quota.TryAcquire(ctx)
			if err != nil || !ok {
				e.logQuotaSkip(ctx, model, err)
				return backoff.Permanent(fmt.Errorf("retry aborted: %w", errQuotaExhausted))
			}
		}

		sent++
		started := e.now()
		resp, err := e.transport.ChatCompletions(observability.WithAttempt(ctx, sent), payload)
		latency := e.now().Sub(started)

		if err == nil && len(resp.Choices) == 0 {
			err = errEmptyCompletion
		}

		if err != nil {
			e.telemetry.Log(ctx, TelemetryEvent{
				Type:         EventError,
				ModelID:      model.ID,
				IsFree:       model.IsFree,
				LatencyMS:    latency.Milliseconds(),
				StatusCode:   StatusCode(err),
				ErrorCode:    ErrorCode(err),
				ErrorMessage: err.Error(),
			})
			if !IsRetriable(err) {
				logger.Warn("non-retriable error, abandoning model", observability.Error(err))
				return backoff.Permanent(err)
			}
			return err
		}

		message := resp.Choices[0].Message
		e.telemetry.Log(ctx, TelemetryEvent{
			Type:          EventRequest,
			ModelID:       model.ID,
			IsFree:        model.IsFree,
			LatencyMS:     latency.Milliseconds(),
			RequestChars:  requestChars,
			ResponseChars: len(message.Content),
		})

		usage := resp.Usage
		if usage != nil {
			usage.Cost = UsageCost(model, usage)
		}

		result = &TaskResponse{
			Message:   message,
			ModelUsed: model.ID,
			IsFree:    model.IsFree,
			LatencyMS: latency.Milliseconds(),
			Usage:     usage,
		}
		return nil
	}

	notify := func(err error, delay time.Duration) {
		logger.Info("retrying after backoff",
			observability.Int("retry", sent),
			observability.Duration("delay", delay),
			observability.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(NewRetryBackOff(cfg), uint64(cfg.MaxRetries-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if IsRetriable(err) {
			logger.Warn("retries exhausted", observability.Int("attempts", sent), observability.Error(err))
		}
		return nil, sent, err
	}
	return result, sent, nil
}

func buildPayload(task *TaskRequest, modelID string) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:          modelID,
		Messages:       task.Messages,
		Temperature:    task.Temperature,
		TopP:           task.TopP,
		MaxTokens:      task.MaxTokens,
		ResponseFormat: task.ResponseFormat,
		Tools:          task.Tools,
		ToolChoice:     task.ToolChoice,
	}
}

func messageChars(messages []Message) int {
	data, err := json.Marshal(messages)
	if err != nil {
		return 0
	}
	return len(data)
}
