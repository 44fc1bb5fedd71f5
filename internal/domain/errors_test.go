package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/freeroute/internal/domain"
)

func TestAPIError(t *testing.T) {
	t.Run("should keep the upstream message", func(t *testing.T) {
		err := domain.NewAPIError(429, "Rate limit exceeded")
		require.Equal(t, "Rate limit exceeded", err.Error())
	})

	t.Run("should fall back to the status text", func(t *testing.T) {
		err := domain.NewAPIError(502, "")
		require.Equal(t, "HTTP 502: Bad Gateway", err.Error())
	})
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		retriable    bool
		invalidModel bool
		code         string
	}{
		{name: "rate limit", err: domain.NewAPIError(429, "slow down"), retriable: true, code: "429"},
		{name: "server error", err: domain.NewAPIError(500, ""), retriable: true, code: "500"},
		{name: "gateway timeout", err: domain.NewAPIError(504, ""), retriable: true, code: "504"},
		{name: "bad request", err: domain.NewAPIError(400, "bad"), code: "400"},
		{name: "unauthorized", err: domain.NewAPIError(401, ""), code: "401"},
		{
			name:         "removed model",
			err:          domain.NewAPIError(404, "Model not found: x"),
			invalidModel: true,
			code:         "404",
		},
		{
			name:         "invalid model in wrapped error",
			err:          fmt.Errorf("call failed: %w", domain.NewAPIError(400, "Invalid model id")),
			invalidModel: true,
			code:         "400",
		},
		{name: "timeout", err: fmt.Errorf("%w after 1s", domain.ErrRequestTimeout), code: domain.CodeTimeout},
		{name: "canceled", err: fmt.Errorf("request aborted: %w", context.Canceled), code: domain.CodeCanceled},
		{name: "network", err: errors.New("dial tcp: connection refused"), code: domain.CodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.retriable, domain.IsRetriable(tt.err))
			require.Equal(t, tt.invalidModel, domain.IsInvalidModel(tt.err))
			require.Equal(t, tt.code, domain.ErrorCode(tt.err))
		})
	}

	require.Empty(t, domain.ErrorCode(nil))
	require.False(t, domain.IsInvalidModel(nil))
}

func TestExecutionError(t *testing.T) {
	var err error = &domain.ExecutionError{Code: domain.CodeAllFailed, Message: "all model attempts failed"}

	require.Equal(t, "ALL_FAILED: all model attempts failed", err.Error())
	require.True(t, domain.IsCode(fmt.Errorf("wrapped: %w", err), domain.CodeAllFailed))
	require.False(t, domain.IsCode(err, domain.CodeTimeout))
	require.False(t, domain.IsCode(errors.New("plain"), domain.CodeAllFailed))
}
