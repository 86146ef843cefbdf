package domain

import "time"

const (
	DefaultMaxLoginAttempts = 5
	DefaultLoginWindow      = time.Minute
	DefaultLoginBlock       = 15 * time.Minute
)

// ThrottlePolicy holds the login throttle thresholds. Every RateLimiter
// backend delegates its decisions here.
type ThrottlePolicy struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

func DefaultThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{
		MaxAttempts:   DefaultMaxLoginAttempts,
		Window:        DefaultLoginWindow,
		BlockDuration: DefaultLoginBlock,
	}
}

// WithDefaults fills zero fields with the defaults.
func (p ThrottlePolicy) WithDefaults() ThrottlePolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxLoginAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultLoginWindow
	}
	if p.BlockDuration <= 0 {
		p.BlockDuration = DefaultLoginBlock
	}
	return p
}

// ThrottleEntry is the stored counter of one client identifier. InFlight
// counts attempts that hold a reservation and have not been settled yet.
type ThrottleEntry struct {
	Count    int
	InFlight int
	ResetAt  time.Time
}

// Expired reports whether the entry should be read as absent.
func (e ThrottleEntry) Expired(now time.Time) bool {
	return (e.Count <= 0 && e.InFlight <= 0) || e.ResetAt.Before(now)
}

func (e ThrottleEntry) used() int {
	return e.Count + e.InFlight
}

// ThrottleDecision is the answer to "may this client try now".
type ThrottleDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Decide evaluates entry without changing it. A nil entry means absent.
// Reserved attempts count against the quota like failures do.
func (p ThrottlePolicy) Decide(entry *ThrottleEntry, now time.Time) ThrottleDecision {
	if entry == nil || entry.Expired(now) {
		return ThrottleDecision{
			Allowed:   true,
			Limit:     p.MaxAttempts,
			Remaining: p.MaxAttempts,
			ResetAt:   now.Add(p.Window),
		}
	}
	if entry.used() >= p.MaxAttempts {
		return ThrottleDecision{Allowed: false, Limit: p.MaxAttempts, ResetAt: entry.ResetAt}
	}
	return ThrottleDecision{
		Allowed:   true,
		Limit:     p.MaxAttempts,
		Remaining: p.MaxAttempts - entry.used(),
		ResetAt:   entry.ResetAt,
	}
}

// Reserve claims one attempt slot. When the quota is used up the entry is
// returned unchanged with a blocking decision. Backends must run Reserve and
// the write of its result atomically.
func (p ThrottlePolicy) Reserve(entry *ThrottleEntry, now time.Time) (ThrottleEntry, ThrottleDecision) {
	if entry == nil || entry.Expired(now) {
		next := ThrottleEntry{InFlight: 1, ResetAt: now.Add(p.Window)}
		return next, ThrottleDecision{
			Allowed:   true,
			Limit:     p.MaxAttempts,
			Remaining: p.MaxAttempts - 1,
			ResetAt:   next.ResetAt,
		}
	}
	if entry.used() >= p.MaxAttempts {
		return *entry, ThrottleDecision{Allowed: false, Limit: p.MaxAttempts, ResetAt: entry.ResetAt}
	}
	next := *entry
	next.InFlight++
	return next, ThrottleDecision{
		Allowed:   true,
		Limit:     p.MaxAttempts,
		Remaining: p.MaxAttempts - next.used(),
		ResetAt:   next.ResetAt,
	}
}

// Fail returns the entry after one more failure, settling a reservation if
// one is held. Reaching the threshold escalates the reset time from the
// window to the block duration.
func (p ThrottlePolicy) Fail(entry *ThrottleEntry, now time.Time) ThrottleEntry {
	next := ThrottleEntry{Count: 1, ResetAt: now.Add(p.Window)}
	if entry != nil && !entry.Expired(now) {
		next = ThrottleEntry{Count: entry.Count + 1, InFlight: entry.InFlight, ResetAt: entry.ResetAt}
		if next.InFlight > 0 {
			next.InFlight--
		}
	}
	if next.Count >= p.MaxAttempts {
		next.ResetAt = now.Add(p.BlockDuration)
	}
	return next
}

// RateLimitError converts a blocking decision into the error surfaced to the
// caller.
func (d ThrottleDecision) RateLimitError(now time.Time) *RateLimitError {
	return &RateLimitError{Limit: d.Limit, ResetAt: d.ResetAt, Now: now}
}
