package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps a sliding window of failure timestamps per key in process.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewMemory builds an in-process limiter.
func NewMemory(policy Policy) *Memory {
	return &Memory{
		policy:   policy.normalize(),
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
}

// WithClock overrides the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	if now != nil {
		m.now = now
	}
	return m
}

// Allow reports whether the key is still under its failure budget.
func (m *Memory) Allow(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.prune(key, m.now())
	return len(recent) < m.policy.MaxAttempts
}

// Record stores a failure, or clears the key on success.
func (m *Memory) Record(_ context.Context, key string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		delete(m.failures, key)
		return
	}
	now := m.now()
	recent := m.prune(key, now)
	m.failures[key] = append(recent, now)
}

// Sweep drops keys whose failures all fell out of the window.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key := range m.failures {
		if len(m.prune(key, now)) == 0 {
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failures)
}

// prune must be called with mu held.
func (m *Memory) prune(key string, now time.Time) []time.Time {
	entries := m.failures[key]
	cutoff := now.Add(-m.policy.Window)
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(m.failures, key)
		return nil
	}
	m.failures[key] = kept
	return kept
}
