package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/davidbz/freeroute/internal/observability"
)

const (
	freeModelSuffix = ":free"
	unknownProvider = "unknown"
)

// CatalogService caches the aggregator's model registry with a TTL.
// The model slice is replaced wholesale on refresh and never mutated, so
// readers holding a snapshot never observe a partial update.
type CatalogService struct {
	transport Transport
	ttl       time.Duration
	now       Clock

	mu        sync.RWMutex
	models    []ModelMetadata
	fetchedAt time.Time

	refreshGroup singleflight.Group
}

// NewCatalogService creates a catalog cache over transport (DI constructor).
func NewCatalogService(transport Transport, ttlMinutes int, opts ...Option) *CatalogService {
	s := applyOptions(opts)
	return &CatalogService{
		transport: transport,
		ttl:       time.Duration(ttlMinutes) * time.Minute,
		now:       s.now,
	}
}

// IsStale reports whether the cache is empty or older than its TTL.
func (c *CatalogService) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isStaleLocked()
}

func (c *CatalogService) isStaleLocked() bool {
	if len(c.models) == 0 {
		return true
	}
	return c.now().Sub(c.fetchedAt) > c.ttl
}

// Refresh fetches the registry and replaces the cache. Concurrent callers
// share one upstream fetch, which is detached from any single caller's
// cancellation and bounded by the transport's list timeout instead. A caller
// whose ctx ends stops waiting without aborting the fetch for the others.
func (c *CatalogService) Refresh(ctx context.Context) error {
	result := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("catalog refresh abandoned: %w", ctx.Err())
	case res := <-result:
		return res.Err
	}
}

func (c *CatalogService) refresh(ctx context.Context) error {
	logger := observability.FromContext(ctx)

	remote, err := c.transport.ListModels(ctx)
	if err != nil {
		logger.Error("catalog refresh failed", observability.Error(err))
		return fmt.Errorf("failed to list models: %w", err)
	}

	now := c.now()
	models := make([]ModelMetadata, 0, len(remote))
	for _, m := range remote {
		models = append(models, toMetadata(m, now))
	}

	c.mu.Lock()
	c.models = models
	c.fetchedAt = now
	c.mu.Unlock()

	logger.Info("catalog refreshed", observability.Int("models", len(models)))
	return nil
}

// EnsureFresh refreshes the cache when it is stale.
func (c *CatalogService) EnsureFresh(ctx context.Context) error {
	if !c.IsStale() {
		return nil
	}
	return c.Refresh(ctx)
}

// snapshot returns the current model slice after ensuring freshness.
func (c *CatalogService) snapshot(ctx context.Context) ([]ModelMetadata, error) {
	if err := c.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models, nil
}

// AllModels returns a copy of every cached model.
func (c *CatalogService) AllModels(ctx context.Context) ([]ModelMetadata, error) {
	models, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(models), nil
}

// FreeModels returns the free-tier models.
func (c *CatalogService) FreeModels(ctx context.Context) ([]ModelMetadata, error) {
	return c.QueryModels(ctx, CatalogQuery{FreeOnly: true})
}

// PaidModels returns the paid models.
func (c *CatalogService) PaidModels(ctx context.Context) ([]ModelMetadata, error) {
	models, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	paid := make([]ModelMetadata, 0, len(models))
	for _, m := range models {
		if !m.IsFree {
			paid = append(paid, m)
		}
	}
	return paid, nil
}

// QueryModels returns models matching every filter in q, in catalog order.
func (c *CatalogService) QueryModels(ctx context.Context, q CatalogQuery) ([]ModelMetadata, error) {
	models, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ModelMetadata, 0, len(models))
	for _, m := range models {
		if q.FreeOnly && !m.IsFree {
			continue
		}
		if q.MinContext > 0 && m.ContextLength < q.MinContext {
			continue
		}
		if len(q.Providers) > 0 && !slices.Contains(q.Providers, m.Provider) {
			continue
		}
		results = append(results, m)
	}
	return results, nil
}

// FindModel looks a model up by exact id.
func (c *CatalogService) FindModel(ctx context.Context, id string) (*ModelMetadata, bool, error) {
	if id == "" {
		return nil, false, errors.New("model id cannot be empty")
	}

	models, err := c.snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range models {
		if models[i].ID == id {
			m := models[i]
			return &m, true, nil
		}
	}
	return nil, false, nil
}

// Stats reports size, age and staleness without triggering a refresh.
func (c *CatalogService) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CatalogStats{
		Count: len(c.models),
		AgeMS: c.now().Sub(c.fetchedAt).Milliseconds(),
		Stale: c.isStaleLocked(),
	}
}

func toMetadata(m RemoteModel, cachedAt time.Time) ModelMetadata {
	contextLength := m.ContextLength
	if contextLength == 0 && m.TopProvider != nil {
		contextLength = m.TopProvider.ContextLength
	}

	var prompt, completion float64
	if m.Pricing != nil {
		prompt = parsePrice(m.Pricing.Prompt)
		completion = parsePrice(m.Pricing.Completion)
	}

	return ModelMetadata{
		ID:                m.ID,
		Name:              m.Name,
		IsFree:            strings.HasSuffix(m.ID, freeModelSuffix),
		ContextLength:     contextLength,
		PricingPrompt:     prompt,
		PricingCompletion: completion,
		Provider:          ProviderOf(m.ID),
		CachedAt:          cachedAt,
	}
}

// ProviderOf returns the namespace prefix of a model id ("openai/gpt-4" -> "openai").
func ProviderOf(modelID string) string {
	provider, _, found := strings.Cut(modelID, "/")
	if !found {
		return unknownProvider
	}
	return provider
}

func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
