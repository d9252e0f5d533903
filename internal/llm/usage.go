package llm

import (
	"sync"
	"time"
)

// ProviderSnapshot is a point-in-time view of one provider's counters.
type ProviderSnapshot struct {
	Requests     int64         `json:"requests"`
	Successful   int64         `json:"successful"`
	Failed       int64         `json:"failed"`
	TotalLatency time.Duration `json:"-"`
	AvgLatencyMS int64         `json:"avg_latency_ms"`
	TotalTokens  int64         `json:"total_tokens"`
	TotalCostUSD float64       `json:"total_cost_usd"`
	SuccessRate  float64       `json:"success_rate"`
}

// Stats accumulates per-provider usage counters for the life of the process.
// Entries are created lazily and only ever grow. All access is mutex-guarded;
// Stats is injected into the scorer and executor rather than living as a
// package-level singleton.
type Stats struct {
	mu         sync.Mutex
	byProvider map[string]*providerStats
}

type providerStats struct {
	requests     int64
	successful   int64
	failed       int64
	totalLatency time.Duration
	totalTokens  int64
	totalCostUSD float64
}

// NewStats creates an empty usage registry.
func NewStats() *Stats {
	return &Stats{byProvider: make(map[string]*providerStats)}
}

// RecordSuccess accumulates one successful call.
func (s *Stats) RecordSuccess(provider string, latency time.Duration, tokens int64, costUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.get(provider)
	ps.requests++
	ps.successful++
	ps.totalLatency += latency
	ps.totalTokens += tokens
	ps.totalCostUSD += costUSD
}

// RecordFailure accumulates one failed call.
func (s *Stats) RecordFailure(provider string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.get(provider)
	ps.requests++
	ps.failed++
	ps.totalLatency += latency
}

// HealthMultiplier derives a [0,1] factor from a provider's rolling success
// rate (weight 0.7) and average response time (weight 0.3). Providers with
// no recorded traffic score 1.0.
func (s *Stats) HealthMultiplier(provider string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.byProvider[provider]
	if !ok || ps.requests == 0 {
		return 1.0
	}

	successRate := float64(ps.successful) / float64(ps.requests)

	avgSecs := ps.totalLatency.Seconds() / float64(ps.requests)
	latencyFactor := 1.0 - avgSecs/10.0
	if latencyFactor < 0 {
		latencyFactor = 0
	}

	return 0.7*successRate + 0.3*latencyFactor
}

// Snapshot returns a copy of all provider counters.
func (s *Stats) Snapshot() map[string]ProviderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ProviderSnapshot, len(s.byProvider))
	for name, ps := range s.byProvider {
		snap := ProviderSnapshot{
			Requests:     ps.requests,
			Successful:   ps.successful,
			Failed:       ps.failed,
			TotalLatency: ps.totalLatency,
			TotalTokens:  ps.totalTokens,
			TotalCostUSD: ps.totalCostUSD,
		}
		if ps.requests > 0 {
			snap.AvgLatencyMS = ps.totalLatency.Milliseconds() / ps.requests
			snap.SuccessRate = float64(ps.successful) / float64(ps.requests)
		}
		out[name] = snap
	}
	return out
}

func (s *Stats) get(provider string) *providerStats {
	ps, ok := s.byProvider[provider]
	if !ok {
		ps = &providerStats{}
		s.byProvider[provider] = ps
	}
	return ps
}
