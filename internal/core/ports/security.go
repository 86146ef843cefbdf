package ports

import (
	"context"
	"time"

	"github.com/linkrelay/panel/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords. Verify fails closed.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// SessionCodec signs and verifies session tokens.
type SessionCodec interface {
	Issue(sess domain.Session) (token string, expiresAt time.Time, err error)
	// Parse returns domain.ErrInvalidSession for any verification failure.
	Parse(token string) (*domain.Session, error)
}

// RateLimiter is the login throttle store. Check never mutates. Reserve
// atomically claims an attempt slot that the following RecordFailure or
// RecordSuccess settles.
type RateLimiter interface {
	Check(ctx context.Context, identifier string) (domain.ThrottleDecision, error)
	Reserve(ctx context.Context, identifier string) (domain.ThrottleDecision, error)
	RecordFailure(ctx context.Context, identifier string) error
	RecordSuccess(ctx context.Context, identifier string) error
}

// AuditSink accepts audit events without blocking the caller.
type AuditSink interface {
	Record(event domain.AuditEvent)
}
