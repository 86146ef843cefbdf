package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidSession     = errors.New("invalid session")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrRateLimited        = errors.New("too many attempts")
	ErrActorNotFound      = errors.New("actor not found")
	ErrUserExists         = errors.New("user already exists")

	ErrTargetNotFound          = errors.New("target user not found")
	ErrTargetInactive          = errors.New("target user is not active")
	ErrTargetBanned            = errors.New("target user is banned")
	ErrImpersonationTargetGone = fmt.Errorf("impersonated user no longer exists: %w", ErrActorNotFound)

	ErrWeakPassword            = errors.New("password must be at least 6 characters")
	ErrCurrentPasswordRequired = errors.New("current password is required")
	ErrCurrentPasswordMismatch = errors.New("current password is incorrect")
)

type SuspensionKind string

const (
	SuspensionInactive SuspensionKind = "inactive"
	SuspensionBanned   SuspensionKind = "banned"
)

// SuspensionError is returned when valid credentials belong to a member that
// is banned or deactivated. It matches ErrAccountSuspended with errors.Is.
type SuspensionError struct {
	Kind   SuspensionKind
	Reason string
}

func (e *SuspensionError) Error() string {
	if e.Kind == SuspensionInactive {
		return "account is deactivated, contact an administrator"
	}
	if e.Reason != "" {
		return "account is suspended. Reason: " + e.Reason
	}
	return "account is suspended, contact an administrator"
}

func (e *SuspensionError) Unwrap() error { return ErrAccountSuspended }

// RateLimitError carries the moment the client may retry.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
	Now     time.Time
}

func (e *RateLimitError) Error() string {
	minutes := (e.RetryAfterSeconds() + 59) / 60
	return fmt.Sprintf("too many failed attempts, try again in %d minute(s)", minutes)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds the remaining block up to whole seconds, never
// below one.
func (e *RateLimitError) RetryAfterSeconds() int {
	return ceilSeconds(e.ResetAt.Sub(e.Now))
}

func ceilSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
