package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/core/domain"
)

const maxTxRetries = 8

var ErrContention = errors.New("rate limit: too much contention on key")

// RateLimiter is the shared login throttle store for multi-instance
// deployments. Key format: login:<identifier>, a hash of count, inflight
// and reset (unix milliseconds) expiring with the entry.
type RateLimiter struct {
	client *redis.Client
	policy domain.ThrottlePolicy
	clock  abtime.AbstractTime
}

// NewRateLimiter wraps client. clock may be nil.
func NewRateLimiter(client *redis.Client, policy domain.ThrottlePolicy, clock abtime.AbstractTime) *RateLimiter {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &RateLimiter{client: client, policy: policy.WithDefaults(), clock: clock}
}

func (l *RateLimiter) Check(ctx context.Context, identifier string) (domain.ThrottleDecision, error) {
	entry, err := load(ctx, l.client, l.key(identifier))
	if err != nil {
		return domain.ThrottleDecision{}, err
	}
	return l.policy.Decide(entry, l.clock.Now()), nil
}

// Reserve claims an attempt slot inside WATCH/MULTI. A blocked decision
// writes nothing, so only admitted reservations contend with each other.
func (l *RateLimiter) Reserve(ctx context.Context, identifier string) (domain.ThrottleDecision, error) {
	key := l.key(identifier)

	var decision domain.ThrottleDecision
	err := l.update(ctx, key, func(current *domain.ThrottleEntry, now time.Time) (*domain.ThrottleEntry, error) {
		next, d := l.policy.Reserve(current, now)
		decision = d
		if !d.Allowed {
			return nil, nil
		}
		return &next, nil
	})
	if err != nil {
		return domain.ThrottleDecision{}, fmt.Errorf("rate limit reserve: %w", err)
	}
	return decision, nil
}

// RecordFailure runs read-decide-write inside WATCH/MULTI and retries when
// another writer touched the key in between.
func (l *RateLimiter) RecordFailure(ctx context.Context, identifier string) error {
	err := l.update(ctx, l.key(identifier), func(current *domain.ThrottleEntry, now time.Time) (*domain.ThrottleEntry, error) {
		next := l.policy.Fail(current, now)
		return &next, nil
	})
	if err != nil {
		return fmt.Errorf("rate limit increment: %w", err)
	}
	return nil
}

// update applies fn to the stored entry optimistically. A nil result leaves
// the key untouched.
func (l *RateLimiter) update(ctx context.Context, key string, fn func(*domain.ThrottleEntry, time.Time) (*domain.ThrottleEntry, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		next, err := fn(current, now)
		if err != nil || next == nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"count", next.Count,
				"inflight", next.InFlight,
				"reset", next.ResetAt.UnixMilli(),
			)
			pipe.PExpire(ctx, key, next.ResetAt.Sub(now))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := l.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (l *RateLimiter) RecordSuccess(ctx context.Context, identifier string) error {
	if err := l.client.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

func (l *RateLimiter) key(identifier string) string {
	return "login:" + identifier
}

// load returns nil for a missing key.
func load(ctx context.Context, c redis.Cmdable, key string) (*domain.ThrottleEntry, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit read: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return nil, fmt.Errorf("rate limit read count: %w", err)
	}
	inflight := 0
	if raw, ok := fields["inflight"]; ok {
		if inflight, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("rate limit read inflight: %w", err)
		}
	}
	resetMs, err := strconv.ParseInt(fields["reset"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rate limit read reset: %w", err)
	}
	return &domain.ThrottleEntry{Count: count, InFlight: inflight, ResetAt: time.UnixMilli(resetMs)}, nil
}
