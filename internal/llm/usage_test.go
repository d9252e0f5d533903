package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMultiplier_NoTrafficIsNeutral(t *testing.T) {
	s := NewStats()
	assert.Equal(t, 1.0, s.HealthMultiplier("openai"))
}

func TestHealthMultiplier_Weighting(t *testing.T) {
	s := NewStats()

	// 3 successes, 1 failure, 1s average latency:
	// 0.7*0.75 + 0.3*(1 - 1/10) = 0.525 + 0.27 = 0.795
	for i := 0; i < 3; i++ {
		s.RecordSuccess("anthropic", time.Second, 100, 0.01)
	}
	s.RecordFailure("anthropic", time.Second)

	assert.InDelta(t, 0.795, s.HealthMultiplier("anthropic"), 1e-9)
}

func TestHealthMultiplier_LatencyFactorFloorsAtZero(t *testing.T) {
	s := NewStats()
	s.RecordSuccess("openai", 30*time.Second, 100, 0.01)

	// Perfect success rate but pathological latency: 0.7*1 + 0.3*0.
	assert.InDelta(t, 0.7, s.HealthMultiplier("openai"), 1e-9)
}

func TestSnapshot_Counters(t *testing.T) {
	s := NewStats()
	s.RecordSuccess("openai", 200*time.Millisecond, 500, 0.002)
	s.RecordSuccess("openai", 400*time.Millisecond, 700, 0.003)
	s.RecordFailure("openai", 300*time.Millisecond)

	snap := s.Snapshot()
	require.Contains(t, snap, "openai")
	got := snap["openai"]
	assert.Equal(t, int64(3), got.Requests)
	assert.Equal(t, int64(2), got.Successful)
	assert.Equal(t, int64(1), got.Failed)
	assert.Equal(t, int64(1200), got.TotalTokens)
	assert.InDelta(t, 0.005, got.TotalCostUSD, 1e-9)
	assert.Equal(t, int64(300), got.AvgLatencyMS)
	assert.InDelta(t, 2.0/3.0, got.SuccessRate, 1e-9)
}

func TestStats_ConcurrentRecording(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordSuccess("openai", time.Millisecond, 10, 0.001)
			s.RecordFailure("anthropic", time.Millisecond)
			_ = s.HealthMultiplier("openai")
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(50), snap["openai"].Requests)
	assert.Equal(t, int64(50), snap["anthropic"].Failed)
}
