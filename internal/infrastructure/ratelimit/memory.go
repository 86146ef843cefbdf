// Package ratelimit provides the in-process login throttle store for
// single-instance deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/core/domain"
)

const (
	keyPrefix     = "login:"
	sweepInterval = time.Minute
)

// SweepTickerID identifies the sweeper ticker on a manual abtime clock.
const SweepTickerID = 1

// Memory implements ports.RateLimiter over a mutex-guarded map.
type Memory struct {
	mu      sync.Mutex
	entries map[string]domain.ThrottleEntry
	policy  domain.ThrottlePolicy
	clock   abtime.AbstractTime
}

// NewMemory returns an empty store. Call Run to purge expired entries.
func NewMemory(policy domain.ThrottlePolicy, clock abtime.AbstractTime) *Memory {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Memory{
		entries: make(map[string]domain.ThrottleEntry),
		policy:  policy.WithDefaults(),
		clock:   clock,
	}
}

func (m *Memory) Check(_ context.Context, identifier string) (domain.ThrottleDecision, error) {
	now := m.clock.Now()

	m.mu.Lock()
	entry, ok := m.entries[keyPrefix+identifier]
	m.mu.Unlock()

	if !ok {
		return m.policy.Decide(nil, now), nil
	}
	return m.policy.Decide(&entry, now), nil
}

// Reserve claims a slot under the lock, so N parallel callers see at most
// MaxAttempts allowed decisions between them.
func (m *Memory) Reserve(_ context.Context, identifier string) (domain.ThrottleDecision, error) {
	key := keyPrefix + identifier
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var current *domain.ThrottleEntry
	if entry, ok := m.entries[key]; ok {
		current = &entry
	}
	next, decision := m.policy.Reserve(current, now)
	if decision.Allowed {
		m.entries[key] = next
	}
	return decision, nil
}

// RecordFailure reads, decides and writes under one lock so parallel
// failures cannot slip past the threshold.
func (m *Memory) RecordFailure(_ context.Context, identifier string) error {
	key := keyPrefix + identifier
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var current *domain.ThrottleEntry
	if entry, ok := m.entries[key]; ok {
		current = &entry
	}
	m.entries[key] = m.policy.Fail(current, now)
	return nil
}

func (m *Memory) RecordSuccess(_ context.Context, identifier string) error {
	m.mu.Lock()
	delete(m.entries, keyPrefix+identifier)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Run sweeps every minute of the store's clock until ctx is cancelled.
func (m *Memory) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(sweepInterval, SweepTickerID)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Channel():
			m.Sweep()
		}
	}
}
