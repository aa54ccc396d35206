package ai

import (
	"sync"
	"time"
)

// StrategyStats aggregates calls made through the dispatcher.
type StrategyStats struct {
	Calls        int64     `json:"calls"`
	Failures     int64     `json:"failures"`
	Unavailable  int64     `json:"unavailable"`
	Fallbacks    int64     `json:"fallbacks"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	LastError    string    `json:"last_error,omitempty"`
	LastCalledAt time.Time `json:"last_called_at"`

	totalLatency time.Duration
}

// SuccessRate is the share of calls that returned without error.
func (s StrategyStats) SuccessRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Calls-s.Failures) / float64(s.Calls)
}

type statsTracker struct {
	mu    sync.Mutex
	stats map[string]*StrategyStats
}

func newStatsTracker() *statsTracker {
	return &statsTracker{stats: make(map[string]*StrategyStats)}
}

func (t *statsTracker) entry(name string) *StrategyStats {
	st, ok := t.stats[name]
	if !ok {
		st = &StrategyStats{}
		t.stats[name] = st
	}
	return st
}

func (t *statsTracker) record(name string, elapsed time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.entry(name)
	st.Calls++
	st.totalLatency += elapsed
	st.AvgLatencyMs = float64(st.totalLatency.Microseconds()) / 1000 / float64(st.Calls)
	st.LastCalledAt = time.Now().UTC()
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
}

func (t *statsTracker) unavailable(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(name).Unavailable++
}

func (t *statsTracker) fallback(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(name).Fallbacks++
}

func (t *statsTracker) snapshot() map[string]StrategyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]StrategyStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}
