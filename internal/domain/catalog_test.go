package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/mocks"
)

func TestCatalogService_IsStale(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/llama:free", 8192)}, nil)

	catalog := domain.NewCatalogService(transport, 60, domain.WithClock(clock.Now))

	t.Run("should be stale when empty", func(t *testing.T) {
		require.True(t, catalog.IsStale())
	})

	t.Run("should be fresh right after refresh", func(t *testing.T) {
		require.NoError(t, catalog.Refresh(ctx))
		require.False(t, catalog.IsStale())
	})

	t.Run("should stay fresh at exactly the ttl", func(t *testing.T) {
		clock.Advance(60 * time.Minute)
		require.False(t, catalog.IsStale())
	})

	t.Run("should be stale strictly after the ttl", func(t *testing.T) {
		clock.Advance(time.Millisecond)
		require.True(t, catalog.IsStale())
	})
}

func TestCatalogService_Normalization(t *testing.T) {
	ctx := context.Background()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).Return([]domain.RemoteModel{
		freeModel("meta-llama/llama-3-8b:free", 8192),
		{
			ID:          "openai/gpt-4o",
			Name:        "GPT-4o",
			TopProvider: &domain.TopProvider{ContextLength: 128000},
			Pricing:     &domain.RemotePrice{Prompt: "0.000005", Completion: "0.000015"},
		},
		{ID: "standalone", Pricing: &domain.RemotePrice{Prompt: "bogus", Completion: ""}},
	}, nil).Once()

	catalog := domain.NewCatalogService(transport, 60)

	models, err := catalog.AllModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 3)

	require.True(t, models[0].IsFree)
	require.Equal(t, "meta-llama", models[0].Provider)
	require.Equal(t, 8192, models[0].ContextLength)

	require.False(t, models[1].IsFree)
	require.Equal(t, 128000, models[1].ContextLength)
	require.InDelta(t, 0.000005, models[1].PricingPrompt, 1e-12)
	require.InDelta(t, 0.000015, models[1].PricingCompletion, 1e-12)
	require.Equal(t, "openai", models[1].Provider)

	require.Equal(t, "unknown", models[2].Provider)
	require.Zero(t, models[2].PricingPrompt)
	require.False(t, models[2].CachedAt.IsZero())
}

func TestCatalogService_QueryModels(t *testing.T) {
	ctx := context.Background()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).Return([]domain.RemoteModel{
		freeModel("meta/small:free", 4096),
		freeModel("google/large:free", 32768),
		paidModel("openai/gpt-4o", 128000, "0.000005", "0.000015"),
	}, nil).Once()

	catalog := domain.NewCatalogService(transport, 60)

	tests := []struct {
		name     string
		query    domain.CatalogQuery
		expected []string
	}{
		{
			name:     "no filters returns everything",
			query:    domain.CatalogQuery{},
			expected: []string{"meta/small:free", "google/large:free", "openai/gpt-4o"},
		},
		{
			name:     "free only",
			query:    domain.CatalogQuery{FreeOnly: true},
			expected: []string{"meta/small:free", "google/large:free"},
		},
		{
			name:     "min context",
			query:    domain.CatalogQuery{MinContext: 16000},
			expected: []string{"google/large:free", "openai/gpt-4o"},
		},
		{
			name:     "filters combine with and",
			query:    domain.CatalogQuery{FreeOnly: true, MinContext: 16000, Providers: []string{"google", "openai"}},
			expected: []string{"google/large:free"},
		},
		{
			name:     "unknown provider matches nothing",
			query:    domain.CatalogQuery{Providers: []string{"anthropic"}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := catalog.QueryModels(ctx, tt.query)
			require.NoError(t, err)

			ids := make([]string, 0, len(models))
			for _, m := range models {
				ids = append(ids, m.ID)
			}
			require.Equal(t, tt.expected, ids)
		})
	}

	t.Run("free and paid views partition the catalog", func(t *testing.T) {
		free, err := catalog.FreeModels(ctx)
		require.NoError(t, err)
		paid, err := catalog.PaidModels(ctx)
		require.NoError(t, err)
		require.Len(t, free, 2)
		require.Len(t, paid, 1)
	})
}

func TestCatalogService_FindModel(t *testing.T) {
	ctx := context.Background()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/a:free", 8192), freeModel("meta/b:free", 8192)}, nil).Once()
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/b:free", 8192)}, nil).Once()

	catalog := domain.NewCatalogService(transport, 60)

	t.Run("should find a cached model", func(t *testing.T) {
		model, found, err := catalog.FindModel(ctx, "meta/a:free")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "meta/a:free", model.ID)
	})

	t.Run("should reflect the new registry after refresh", func(t *testing.T) {
		require.NoError(t, catalog.Refresh(ctx))

		model, found, err := catalog.FindModel(ctx, "meta/a:free")
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, model)
	})

	t.Run("should reject an empty id", func(t *testing.T) {
		_, _, err := catalog.FindModel(ctx, "")
		require.Error(t, err)
	})
}

func TestCatalogService_RefreshFailure(t *testing.T) {
	ctx := context.Background()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).Return(nil, errors.New("connection refused"))

	catalog := domain.NewCatalogService(transport, 60)

	err := catalog.Refresh(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")

	_, err = catalog.AllModels(ctx)
	require.Error(t, err)
	require.True(t, catalog.IsStale())
}

func TestCatalogService_RefreshKeepsSnapshots(t *testing.T) {
	ctx := context.Background()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/a:free", 8192)}, nil).Once()
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/b:free", 8192), freeModel("meta/c:free", 8192)}, nil).Once()

	catalog := domain.NewCatalogService(transport, 60)

	before, err := catalog.AllModels(ctx)
	require.NoError(t, err)
	require.NoError(t, catalog.Refresh(ctx))

	require.Len(t, before, 1)
	require.Equal(t, "meta/a:free", before[0].ID)

	after, err := catalog.AllModels(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)
}

func TestCatalogService_Stats(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).
		Return([]domain.RemoteModel{freeModel("meta/a:free", 8192)}, nil).Once()

	catalog := domain.NewCatalogService(transport, 60, domain.WithClock(clock.Now))

	require.True(t, catalog.Stats().Stale)
	require.Zero(t, catalog.Stats().Count)

	require.NoError(t, catalog.Refresh(ctx))
	clock.Advance(90 * time.Second)

	stats := catalog.Stats()
	require.Equal(t, 1, stats.Count)
	require.Equal(t, int64(90000), stats.AgeMS)
	require.False(t, stats.Stale)
}

func TestProviderOf(t *testing.T) {
	require.Equal(t, "openai", domain.ProviderOf("openai/gpt-4"))
	require.Equal(t, "meta-llama", domain.ProviderOf("meta-llama/llama-3-8b:free"))
	require.Equal(t, "unknown", domain.ProviderOf("gpt-4"))
}

func TestCatalogService_SharedRefreshSurvivesCallerCancel(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	fetchErr := make(chan error, 2)

	transport := mocks.NewMockTransport(t)
	transport.EXPECT().ListModels(mock.Anything).
		RunAndReturn(func(ctx context.Context) ([]domain.RemoteModel, error) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			fetchErr <- ctx.Err()
			return []domain.RemoteModel{freeModel("meta/llama:free", 8192)}, nil
		})
	catalog := domain.NewCatalogService(transport, 60)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() { leaderDone <- catalog.Refresh(leaderCtx) }()
	<-entered

	followerDone := make(chan error, 1)
	go func() {
		_, err := catalog.AllModels(context.Background())
		followerDone <- err
	}()

	cancelLeader()
	require.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	require.NoError(t, <-fetchErr)
	require.NoError(t, <-followerDone)

	models, err := catalog.AllModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
}
