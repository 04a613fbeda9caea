// Package stats tracks rolling per-backend performance figures. The store is
// short-horizon load-balancing state, not analytics: it lives for the life of
// the process and restarting loses history by design.
package stats

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	nexus "github.com/3bi-io/nexus-core"
)

// BackendMetrics holds the running figures for one backend. SuccessRate is a
// call-weighted running average folded in one outcome at a time, so every
// update is O(1) regardless of call history.
type BackendMetrics struct {
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	TotalCalls   int64     `json:"total_calls"`
	FailedCalls  int64     `json:"failed_calls"`
	TotalCost    float64   `json:"total_cost"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// Store is process-wide mutable state shared by the selector (reads) and the
// executor (writes). Constructed explicitly and injected so tests can hold
// isolated instances.
type Store struct {
	mutex    sync.RWMutex
	backends map[nexus.Backend]*BackendMetrics
	clock    clock.Clock
}

func NewStore() *Store {
	return newStoreWithClock(clock.New())
}

// NewStoreWithClock is for tests that need deterministic LastUsedAt values.
func NewStoreWithClock(clk clock.Clock) *Store {
	return newStoreWithClock(clk)
}

func newStoreWithClock(clk clock.Clock) *Store {
	s := &Store{
		backends: make(map[nexus.Backend]*BackendMetrics),
		clock:    clk,
	}
	s.seed()
	return s
}

// Optimistic startup defaults: every backend starts fully trusted with its
// baseline latency, so the first few routing decisions are not skewed by an
// empty history.
func seededMetrics(backend nexus.Backend) *BackendMetrics {
	switch backend {
	case nexus.BackendLocal:
		return &BackendMetrics{SuccessRate: 1.0, AvgLatencyMs: 150}
	case nexus.BackendPrimary:
		return &BackendMetrics{SuccessRate: 1.0, AvgLatencyMs: 800}
	case nexus.BackendSecondary:
		return &BackendMetrics{SuccessRate: 1.0, AvgLatencyMs: 1200}
	}
	return &BackendMetrics{SuccessRate: 1.0}
}

func (s *Store) seed() {
	for _, backend := range nexus.Backends() {
		s.backends[backend] = seededMetrics(backend)
	}
}

// RecordSuccess folds one successful call into the backend's averages.
func (s *Store) RecordSuccess(backend nexus.Backend, latency time.Duration, cost float64) {
	s.record(backend, latency, cost, true)
}

// RecordFailure folds one failed call into the backend's averages.
func (s *Store) RecordFailure(backend nexus.Backend, latency time.Duration) {
	s.record(backend, latency, 0, false)
}

func (s *Store) record(backend nexus.Backend, latency time.Duration, cost float64, success bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	metrics, ok := s.backends[backend]
	if !ok {
		metrics = seededMetrics(backend)
		s.backends[backend] = metrics
	}

	total := float64(metrics.TotalCalls)
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	metrics.SuccessRate = (metrics.SuccessRate*total + outcome) / (total + 1)
	metrics.AvgLatencyMs = (metrics.AvgLatencyMs*total + float64(latency.Milliseconds())) / (total + 1)
	metrics.TotalCalls++
	if !success {
		metrics.FailedCalls++
	}
	metrics.TotalCost += cost
	metrics.LastUsedAt = s.clock.Now()
}

// Get returns a copy of one backend's metrics.
func (s *Store) Get(backend nexus.Backend) BackendMetrics {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if metrics, ok := s.backends[backend]; ok {
		return *metrics
	}
	return *seededMetrics(backend)
}

// Snapshot returns a copy of the full metrics map.
func (s *Store) Snapshot() map[nexus.Backend]BackendMetrics {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := make(map[nexus.Backend]BackendMetrics, len(s.backends))
	for backend, metrics := range s.backends {
		snapshot[backend] = *metrics
	}
	return snapshot
}

// LoadBalance reports the percentage of total calls handled by each backend.
// All zeros when nothing has been recorded yet.
func (s *Store) LoadBalance() map[nexus.Backend]float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var total int64
	for _, metrics := range s.backends {
		total += metrics.TotalCalls
	}

	balance := make(map[nexus.Backend]float64, len(s.backends))
	for backend, metrics := range s.backends {
		if total == 0 {
			balance[backend] = 0
			continue
		}
		balance[backend] = math.Round(float64(metrics.TotalCalls)/float64(total)*10000) / 100
	}
	return balance
}

// Reset restores the seeded defaults exactly. Used by tests and by
// operator-triggered resets.
func (s *Store) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.backends = make(map[nexus.Backend]*BackendMetrics)
	s.seed()
}
