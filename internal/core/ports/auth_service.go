package ports

import (
	"context"

	"github.com/linkrelay/panel/internal/core/domain"
)

// LoginInput carries the credentials and the throttle key of the caller.
type LoginInput struct {
	Username string
	Password string
	ClientID string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Session domain.Session
	Actor   *domain.Actor
}

type AuthService interface {
	// CheckThrottle returns a *domain.RateLimitError while clientID is
	// locked out. It never consumes an attempt.
	CheckThrottle(ctx context.Context, clientID string) error
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
}

// IdentityResolver turns a verified session into fresh actor state.
type IdentityResolver interface {
	CurrentActor(ctx context.Context, sess *domain.Session) (*domain.Actor, error)
	Resolve(ctx context.Context, sess *domain.Session) (domain.Identity, error)
	Authorize(id domain.Identity) error
}

// Impersonator computes impersonation transitions. The returned session must
// be re-issued by the caller.
type Impersonator interface {
	Enter(ctx context.Context, sess domain.Session, targetUserID int64, clientIP string) (domain.Session, error)
	Exit(ctx context.Context, sess domain.Session, clientIP string) (domain.Session, bool)
}

// ChangePasswordInput is a password change requested by an identity.
type ChangePasswordInput struct {
	TargetUserID    int64
	CurrentPassword string
	NewPassword     string
	ClientIP        string
}

// AccountManager covers the account operations that feed authentication state.
type AccountManager interface {
	ChangePassword(ctx context.Context, by domain.Identity, in ChangePasswordInput) error
	SetStatus(ctx context.Context, by domain.Identity, userID int64, status domain.AccountStatus, clientIP string) (*domain.Actor, error)
}
