package metrics

import (
	"sync"
	"time"
)

// Metrics accumulates run counters. Fetch and verify workers update it
// concurrently; everything else is single-threaded but goes through the
// same lock for uniformity.
type Metrics struct {
	mu sync.Mutex

	counters      map[string]int
	verifyRejects map[string]int

	startedAt time.Time
}

var Global = New()

func New() *Metrics {
	return &Metrics{
		counters:      make(map[string]int),
		verifyRejects: make(map[string]int),
		startedAt:     time.Now(),
	}
}

// Reset clears all counters and restarts the run clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int)
	m.verifyRejects = make(map[string]int)
	m.startedAt = time.Now()
}

func (m *Metrics) Add(name string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

func (m *Metrics) Increment(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Set(name string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] = value
}

// RecordVerifyReject tallies a verification rejection by reason.
func (m *Metrics) RecordVerifyReject(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyRejects[reason]++
}

func (m *Metrics) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.startedAt)
}

// Counters returns a copy of the counter map.
func (m *Metrics) Counters() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// VerifyRejects returns a copy of the per-reason rejection tallies.
func (m *Metrics) VerifyRejects() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.verifyRejects))
	for k, v := range m.verifyRejects {
		out[k] = v
	}
	return out
}
