package llm

import (
	"go.uber.org/zap"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/cost"
	"github.com/courseforge/courseforge/internal/resilience"
)

// Strategy names.
const (
	StrategyBudget   = "budget"
	StrategyBalanced = "balanced"
	StrategyPremium  = "premium"
)

// Strategy bounds a cost envelope and orders model preference within it.
type Strategy struct {
	Name       string
	MaxCostUSD float64
	// Preferred lists model IDs in preference order; earlier entries earn a
	// larger score bonus.
	Preferred []string
}

// DefaultStrategies returns the built-in cost strategies.
func DefaultStrategies() map[string]Strategy {
	return map[string]Strategy{
		StrategyBudget: {
			Name:       StrategyBudget,
			MaxCostUSD: 0.05,
			Preferred:  []string{"gpt-4o-mini", "claude-haiku-4-5-20251001", "gpt-4o"},
		},
		StrategyBalanced: {
			Name:       StrategyBalanced,
			MaxCostUSD: 0.25,
			Preferred:  []string{"claude-sonnet-4-5-20250929", "gpt-4o", "claude-haiku-4-5-20251001"},
		},
		StrategyPremium: {
			Name:       StrategyPremium,
			MaxCostUSD: 1.50,
			Preferred:  []string{"claude-opus-4-6", "claude-sonnet-4-5-20250929", "gpt-4o"},
		},
	}
}

// SelectRequest describes what the caller needs from a model.
type SelectRequest struct {
	// Strategy names a cost strategy; unknown names fall back to balanced.
	Strategy string
	// EstimatedTokens is the expected size of the request, used for cost
	// efficiency scoring.
	EstimatedTokens int64
	// QualityPriority and SpeedPriority scale their score terms; zero means 1.
	QualityPriority float64
	SpeedPriority   float64
	// BudgetUSD, when positive, soft-penalizes models whose estimated cost
	// exceeds it. Over-budget models are not excluded outright: if every
	// alternative scores worse, an over-budget model can still win.
	BudgetUSD float64
	// Exclude lists model keys to skip, used by the fallback cascade.
	Exclude map[string]bool
}

// Selection is the scorer's pick.
type Selection struct {
	Model            catalog.ModelDescriptor
	Score            float64
	EstimatedCostUSD float64
}

// Scorer ranks catalog models for a request using a weighted linear
// combination of quality, speed, reliability, cost efficiency, and strategy
// preference, scaled by provider health. Models with an open breaker are
// filtered out before scoring.
type Scorer struct {
	models     []catalog.ModelDescriptor
	strategies map[string]Strategy
	breakers   *resilience.BreakerSet
	stats      *Stats
}

// NewScorer creates a Scorer over the given model table.
func NewScorer(models []catalog.ModelDescriptor, strategies map[string]Strategy, breakers *resilience.BreakerSet, stats *Stats) *Scorer {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	return &Scorer{
		models:     models,
		strategies: strategies,
		breakers:   breakers,
		stats:      stats,
	}
}

// Select returns the highest-scoring healthy model, or nil when every
// candidate is excluded or circuit-open. Ties go to the earlier table entry.
func (s *Scorer) Select(req SelectRequest) *Selection {
	strategy, ok := s.strategies[req.Strategy]
	if !ok {
		strategy = s.strategies[StrategyBalanced]
	}

	qualityPriority := req.QualityPriority
	if qualityPriority == 0 {
		qualityPriority = 1
	}
	speedPriority := req.SpeedPriority
	if speedPriority == 0 {
		speedPriority = 1
	}

	var best *Selection
	for _, m := range s.models {
		if req.Exclude[m.Key()] {
			continue
		}
		if !s.breakers.Healthy(m.Key()) {
			continue
		}

		estCost := cost.EstimateSymmetric(m, req.EstimatedTokens)

		costEfficiency := 0.0
		if strategy.MaxCostUSD > 0 {
			costEfficiency = 1 - estCost/strategy.MaxCostUSD
			if costEfficiency < 0 {
				costEfficiency = 0
			}
		}

		score := 0.4*m.Quality*qualityPriority +
			0.2*m.Speed*speedPriority +
			0.2*m.Reliability +
			0.15*costEfficiency +
			0.05*preferenceBonus(strategy, m.Model)

		// Soft penalty: over-budget candidates stay eligible at 30% weight.
		if req.BudgetUSD > 0 && estCost > req.BudgetUSD {
			score *= 0.3
		}

		score *= s.stats.HealthMultiplier(m.Provider)

		if best == nil || score > best.Score {
			best = &Selection{Model: m, Score: score, EstimatedCostUSD: estCost}
		}
	}

	if best == nil {
		zap.L().Warn("model selection found no healthy candidate",
			zap.String("strategy", strategy.Name),
			zap.Int("excluded", len(req.Exclude)),
		)
		return nil
	}

	zap.L().Debug("model selected",
		zap.String("model", best.Model.Key()),
		zap.String("strategy", strategy.Name),
		zap.Float64("score", best.Score),
		zap.Float64("estimated_cost_usd", best.EstimatedCostUSD),
	)
	return best
}

// preferenceBonus rewards models appearing earlier in the strategy's
// hand-authored preference list: 1.0 for the first entry, decreasing
// linearly, 0 for unlisted models.
func preferenceBonus(strategy Strategy, modelID string) float64 {
	for i, preferred := range strategy.Preferred {
		if preferred == modelID {
			return float64(len(strategy.Preferred)-i) / float64(len(strategy.Preferred))
		}
	}
	return 0
}
