package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/observability"
)

// Response headers describing the routing outcome.
const (
	headerModelUsed = "X-FreeRoute-Model"
	headerAttempts  = "X-FreeRoute-Attempts"
	headerFailovers = "X-FreeRoute-Failovers"
	headerTier      = "X-FreeRoute-Tier"
)

// maxRequestBodyBytes bounds a chat request body.
const maxRequestBodyBytes = 4 << 20

// Handler handles HTTP requests.
type Handler struct {
	router *domain.RouterService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(router *domain.RouterService) *Handler {
	return &Handler{
		router: router,
	}
}

type errorBody struct {
	Error       *domain.ExecutionError `json:"error"`
	Attempts    int                    `json:"attempts"`
	ModelsTried []string               `json:"models_tried"`
}

type catalogBody struct {
	Stats  domain.CatalogStats    `json:"stats"`
	Models []domain.ModelMetadata `json:"models"`
}

type healthScoresBody struct {
	Scores []domain.ModelHealthScore `json:"scores"`
}

// HandleChatCompletions routes a task to the best available model.
func (h *Handler) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	// Parse request.
	var task domain.TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&task); err != nil {
		writeInvalid(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(task.Messages) == 0 {
		writeInvalid(w, "messages are required")
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("chat request received",
		observability.Int("messages", len(task.Messages)),
		observability.Int("min_context", task.Requirements.MinContext),
		observability.Bool("needs_json", task.Requirements.NeedsJSON),
	)

	result := h.router.ExecuteResult(ctx, &task)

	w.Header().Set(headerAttempts, strconv.Itoa(result.Attempts))

	if !result.Success() {
		logger.Warn("chat request failed",
			observability.String("code", result.Err.Code),
			observability.Int("attempts", result.Attempts),
			observability.Strings("models_tried", result.ModelsTried),
		)
		writeJSON(w, statusFor(result.Err), errorBody{
			Error:       result.Err,
			Attempts:    result.Attempts,
			ModelsTried: result.ModelsTried,
		})
		return
	}

	resp := result.Response
	tier := "paid"
	if resp.IsFree {
		tier = "free"
	}
	w.Header().Set(headerModelUsed, resp.ModelUsed)
	w.Header().Set(headerFailovers, strconv.Itoa(resp.FailoverCount))
	w.Header().Set(headerTier, tier)

	logger.Info("chat request succeeded",
		observability.String("model_used", resp.ModelUsed),
		observability.Int64("latency_ms", resp.LatencyMS),
	)

	writeJSON(w, http.StatusOK, resp)
}

// HandleQuota reports free-tier usage.
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	status, err := h.router.QuotaStatus(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("quota status failed", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleTelemetry returns the telemetry summary.
func (h *Handler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.router.TelemetrySummary())
}

// HandleHealthScores returns per-model health scores.
func (h *Handler) HandleHealthScores(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, healthScoresBody{Scores: h.router.HealthScores()})
}

// HandleCatalog lists cached models, refreshing first when stale.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	models, err := h.router.Models(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("catalog listing failed", observability.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, catalogBody{Stats: h.router.CatalogStats(), Models: models})
}

// HandleCatalogRefresh forces a catalog refresh.
func (h *Handler) HandleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.router.RefreshCatalog(r.Context()); err != nil {
		observability.FromContext(r.Context()).Error("catalog refresh failed", observability.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, h.router.CatalogStats())
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func statusFor(err *domain.ExecutionError) int {
	switch err.Code {
	case domain.CodeInvalid:
		return http.StatusBadRequest
	case domain.CodeNoModels:
		return http.StatusServiceUnavailable
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeInvalid(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:       &domain.ExecutionError{Code: domain.CodeInvalid, Message: message},
		ModelsTried: []string{},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already written; an encode failure only means the client went away.
	_ = json.NewEncoder(w).Encode(body)
}
