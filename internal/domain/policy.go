package domain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

const (
	defaultMinContext      = 4096
	largeContextFactor     = 1.5
	reliableSuccessRate    = 0.95
	unstableSuccessRate    = 0.7
	slowInteractiveLatency = 5000.0
	maxLatencyPenalty      = 10.0
)

// PolicyEngine ranks catalog models for a task using live health data.
type PolicyEngine struct {
	catalog ModelCatalog
	health  HealthSource

	mu     sync.RWMutex
	policy RoutingPolicy
}

// NewPolicyEngine creates a policy engine (DI constructor).
func NewPolicyEngine(catalog ModelCatalog, health HealthSource, policy RoutingPolicy) *PolicyEngine {
	return &PolicyEngine{
		catalog: catalog,
		health:  health,
		policy:  policy,
	}
}

// Policy returns a copy of the current weights.
func (p *PolicyEngine) Policy() RoutingPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// UpdatePolicy swaps the weights used by subsequent rankings.
func (p *PolicyEngine) UpdatePolicy(policy RoutingPolicy) {
	p.mu.Lock()
	p.policy = policy
	p.mu.Unlock()
}

// Candidates builds the candidate pool and returns it sorted by score, best first.
// Free models are considered only when quota is available; paid models are
// appended when paid fallback is allowed and the free pool is unusable.
func (p *PolicyEngine) Candidates(
	ctx context.Context,
	req TaskRequirements,
	quotaAvailable bool,
) ([]ModelCandidate, error) {
	policy := p.Policy()

	allowPaid := policy.AllowPaidFallback
	if req.AllowPaidFallback != nil {
		allowPaid = *req.AllowPaidFallback
	}

	var pool []ModelMetadata

	if quotaAvailable {
		free, err := p.catalog.QueryModels(ctx, CatalogQuery{
			FreeOnly:   true,
			MinContext: req.MinContext,
			Providers:  req.PreferredProviders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query free models: %w", err)
		}
		pool = append(pool, free...)
	}

	if allowPaid && (!quotaAvailable || len(pool) == 0) {
		all, err := p.catalog.QueryModels(ctx, CatalogQuery{
			MinContext: req.MinContext,
			Providers:  req.PreferredProviders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query paid models: %w", err)
		}
		for _, m := range all {
			if !m.IsFree {
				pool = append(pool, m)
			}
		}
	}

	candidates := make([]ModelCandidate, 0, len(pool))
	for _, m := range pool {
		health := p.health.HealthScore(m.ID)
		candidates = append(candidates, ModelCandidate{
			Model:  m,
			Score:  scoreModel(policy, m, req, health),
			Reason: explainScore(m, req, health),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates, nil
}

func minContextOf(req TaskRequirements) int {
	if req.MinContext > 0 {
		return req.MinContext
	}
	return defaultMinContext
}

// scoreModel combines free bonus, context headroom, health, latency and cost.
func scoreModel(policy RoutingPolicy, m ModelMetadata, req TaskRequirements, health ModelHealthScore) float64 {
	var score float64

	if m.IsFree {
		score += policy.FreeBonus
	}

	headroom := math.Max(0, float64(m.ContextLength-minContextOf(req)))
	score += headroom / 1000 * policy.ContextWeight

	healthScore := health.SuccessRate * 100
	errorPenalty := (health.ErrorRate429 + health.ErrorRate5xx) * 50
	score += (healthScore - errorPenalty) * (policy.HealthWeight / 100)

	if health.AvgLatencyMS > 0 {
		score -= math.Min(health.AvgLatencyMS/1000, maxLatencyPenalty)
	}

	if !m.IsFree {
		avgPrice := (m.PricingPrompt + m.PricingCompletion) / 2
		score -= avgPrice * 1000 * (policy.CostWeight / 100)
	}

	return score
}

// explainScore produces the human-readable rationale attached to a candidate.
func explainScore(m ModelMetadata, req TaskRequirements, health ModelHealthScore) string {
	var parts []string

	if m.IsFree {
		parts = append(parts, "free tier")
	}

	if float64(m.ContextLength) > float64(minContextOf(req))*largeContextFactor {
		parts = append(parts, "large context")
	}

	if health.SampleSize > 0 {
		switch {
		case health.SuccessRate > reliableSuccessRate:
			parts = append(parts, "reliable")
		case health.SuccessRate < unstableSuccessRate:
			parts = append(parts, "unstable")
		}
	}

	if req.LatencyTier == LatencyInteractive && health.AvgLatencyMS > slowInteractiveLatency {
		parts = append(parts, "slow for interactive")
	}

	if len(parts) == 0 {
		return "baseline"
	}
	return strings.Join(parts, ", ")
}
