package domain

import (
	"encoding/json"
	"time"
)

// Message roles accepted by the aggregator.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the name and JSON-encoded arguments of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a function definition offered to the model.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ResponseFormat selects structured output. Type is "json_object" or "text".
type ResponseFormat struct {
	Type string `json:"type"`
}

// ResponseFormatJSON requests a JSON object from the model.
const ResponseFormatJSON = "json_object"

// LatencyTier expresses how latency-sensitive a task is.
type LatencyTier string

// Latency tiers.
const (
	LatencyInteractive LatencyTier = "interactive"
	LatencyBatch       LatencyTier = "batch"
)

// TaskRequirements drive candidate selection.
type TaskRequirements struct {
	MinContext         int         `json:"min_context,omitempty"`
	NeedsJSON          bool        `json:"needs_json,omitempty"`
	LatencyTier        LatencyTier `json:"latency_tier,omitempty"`
	AllowPaidFallback  *bool       `json:"allow_paid_fallback,omitempty"` // nil defers to the routing policy
	PreferredProviders []string    `json:"preferred_providers,omitempty"`
}

// TaskRequest is the caller-owned input to one execution.
type TaskRequest struct {
	Messages       []Message        `json:"messages"`
	ResponseFormat *ResponseFormat  `json:"response_format,omitempty"`
	Tools          []Tool           `json:"tools,omitempty"`
	ToolChoice     json.RawMessage  `json:"tool_choice,omitempty"` // "none", "auto" or a function selector object
	Temperature    *float64         `json:"temperature,omitempty"`
	TopP           *float64         `json:"top_p,omitempty"`
	MaxTokens      *int             `json:"max_tokens,omitempty"`
	Requirements   TaskRequirements `json:"requirements"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// TaskResponse is the successful outcome of an execution.
type TaskResponse struct {
	Message       Message `json:"message"`
	ModelUsed     string  `json:"model_used"`
	IsFree        bool    `json:"is_free"`
	FailoverCount int     `json:"failover_count"`
	LatencyMS     int64   `json:"latency_ms"`
	Usage         *Usage  `json:"usage,omitempty"`
}

// RemoteModel is one entry of the aggregator's GET /models listing.
type RemoteModel struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Created       int64         `json:"created"`
	ContextLength int           `json:"context_length,omitempty"`
	Pricing       *RemotePrice  `json:"pricing,omitempty"`
	TopProvider   *TopProvider  `json:"top_provider,omitempty"`
	Architecture  *Architecture `json:"architecture,omitempty"`
}

// RemotePrice holds per-token prices as decimal strings, e.g. "0.000002".
type RemotePrice struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Request    string `json:"request,omitempty"`
	Image      string `json:"image,omitempty"`
}

// TopProvider describes the best upstream serving a model.
type TopProvider struct {
	ContextLength       int  `json:"context_length,omitempty"`
	MaxCompletionTokens int  `json:"max_completion_tokens,omitempty"`
	IsModerated         bool `json:"is_moderated,omitempty"`
}

// Architecture describes a model's modality and tokenizer.
type Architecture struct {
	Modality     string `json:"modality,omitempty"`
	Tokenizer    string `json:"tokenizer,omitempty"`
	InstructType string `json:"instruct_type,omitempty"`
}

// ChatCompletionRequest is the payload of one POST /chat/completions call.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     json.RawMessage `json:"tool_choice,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletionResponse is the aggregator's completion reply.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// ModelMetadata is the catalog's normalized view of a model.
type ModelMetadata struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	IsFree            bool      `json:"is_free"`
	ContextLength     int       `json:"context_length"`
	PricingPrompt     float64   `json:"pricing_prompt"`
	PricingCompletion float64   `json:"pricing_completion"`
	Provider          string    `json:"provider"`
	CachedAt          time.Time `json:"cached_at"`
}

// CatalogQuery filters catalog entries; all set filters must match.
type CatalogQuery struct {
	FreeOnly   bool
	MinContext int
	Providers  []string
}

// CatalogStats describes the catalog cache.
type CatalogStats struct {
	Count int   `json:"count"`
	AgeMS int64 `json:"age_ms"`
	Stale bool  `json:"stale"`
}

// ModelCandidate is a scored routing option.
type ModelCandidate struct {
	Model  ModelMetadata `json:"model"`
	Score  float64       `json:"score"`
	Reason string        `json:"reason"`
}

// RoutingPolicy holds the tunable ranking weights.
type RoutingPolicy struct {
	AllowPaidFallback bool    `json:"allow_paid_fallback"`
	FreeBonus         float64 `json:"free_bonus"`
	ContextWeight     float64 `json:"context_weight"`
	HealthWeight      float64 `json:"health_weight"`
	CostWeight        float64 `json:"cost_weight"`
}

// DefaultRoutingPolicy returns the free-first default weights.
func DefaultRoutingPolicy() RoutingPolicy {
	return RoutingPolicy{
		AllowPaidFallback: false,
		FreeBonus:         100,
		ContextWeight:     10,
		HealthWeight:      50,
		CostWeight:        30,
	}
}

// EventType discriminates telemetry events.
type EventType string

// Telemetry event types.
const (
	EventRequest  EventType = "request"
	EventError    EventType = "error"
	EventFallback EventType = "fallback"
)

// TelemetryEvent is one append-only telemetry record. Only the fields
// relevant to Type are populated.
type TelemetryEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"event_type"`
	ModelID       string    `json:"model_id"`
	IsFree        bool      `json:"is_free"`
	LatencyMS     int64     `json:"latency_ms,omitempty"`
	StatusCode    int       `json:"status_code,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	RequestChars  int       `json:"request_chars,omitempty"`
	ResponseChars int       `json:"response_chars,omitempty"`
	FailoverCount int       `json:"failover_count,omitempty"`
}

// ModelHealthScore is a rolling reliability summary for one model.
type ModelHealthScore struct {
	ModelID      string    `json:"model_id"`
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	ErrorRate429 float64   `json:"error_rate_429"`
	ErrorRate5xx float64   `json:"error_rate_5xx"`
	LastUpdated  time.Time `json:"last_updated"`
	SampleSize   int       `json:"sample_size"`
}

// TelemetrySummary aggregates the whole event buffer.
type TelemetrySummary struct {
	TotalEvents   int     `json:"total_events"`
	TotalRequests int     `json:"total_requests"`
	TotalErrors   int     `json:"total_errors"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	FreeRequests  int     `json:"free_requests"`
	PaidRequests  int     `json:"paid_requests"`
}

// QuotaStatus reports free-tier usage.
type QuotaStatus struct {
	RequestsThisMinute int   `json:"requests_this_minute"`
	RequestsToday      int   `json:"requests_today"`
	MaxRPM             int   `json:"max_rpm"`
	MaxRPD             int   `json:"max_rpd"`
	Available          bool  `json:"available"`
	ResetInMS          int64 `json:"reset_in_ms"`
}

// ExecutionConfig bounds one execution.
type ExecutionConfig struct {
	MaxFailovers   int           `json:"max_failovers"`
	MaxRetries     int           `json:"max_retries"`
	MaxTotalTime   time.Duration `json:"max_total_time"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
}

// DefaultExecutionConfig returns the default execution bounds.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxFailovers:   3,
		MaxRetries:     3,
		MaxTotalTime:   60 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}
