package domain

import (
	"fmt"
	"time"
)

// SessionTTL is the absolute lifetime of an issued session token.
const SessionTTL = 7 * 24 * time.Hour

// Session is the signed, client-held claim of an authenticated actor.
// Role is fixed at login; impersonation only adds ImpersonatingUserID.
type Session struct {
	UserID              int64
	Username            string
	Role                Role
	ImpersonatingUserID *int64
}

// NewSession builds the session issued at a successful login.
func NewSession(a *Actor) Session {
	return Session{UserID: a.ID, Username: a.Username, Role: a.Role}
}

// Validate enforces the structural invariants of a session payload.
func (s Session) Validate() error {
	if s.UserID <= 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidSession)
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidSession, s.Role)
	}
	if s.ImpersonatingUserID != nil {
		if s.Role != RoleAdmin {
			return fmt.Errorf("%w: only admins may impersonate", ErrInvalidSession)
		}
		if *s.ImpersonatingUserID <= 0 {
			return fmt.Errorf("%w: bad impersonation target", ErrInvalidSession)
		}
	}
	return nil
}

func (s Session) Impersonating() bool { return s.ImpersonatingUserID != nil }

// EffectiveUserID is the id whose data applies to the request.
func (s Session) EffectiveUserID() int64 {
	if s.ImpersonatingUserID != nil {
		return *s.ImpersonatingUserID
	}
	return s.UserID
}

// WithImpersonation returns a copy targeting userID.
func (s Session) WithImpersonation(userID int64) Session {
	id := userID
	s.ImpersonatingUserID = &id
	return s
}

// WithoutImpersonation returns a copy acting directly.
func (s Session) WithoutImpersonation() Session {
	s.ImpersonatingUserID = nil
	return s
}
