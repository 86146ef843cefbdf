package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

// ImpersonationService moves an admin session between the Direct and
// Impersonating states. It only computes the next session; persisting it is
// the caller's job.
type ImpersonationService struct {
	repo  ports.ActorRepository
	audit ports.AuditSink
	clock abtime.AbstractTime
	log   zerolog.Logger
}

func NewImpersonationService(repo ports.ActorRepository, audit ports.AuditSink, clock abtime.AbstractTime, log zerolog.Logger) *ImpersonationService {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &ImpersonationService{repo: repo, audit: audit, clock: clock, log: log}
}

// Enter targets targetUserID. The real role must be admin; entering while
// already impersonating replaces the target. On failure sess is returned
// unchanged together with the error.
func (s *ImpersonationService) Enter(ctx context.Context, sess domain.Session, targetUserID int64, clientIP string) (domain.Session, error) {
	if sess.Role != domain.RoleAdmin {
		return sess, domain.ErrForbidden
	}

	admin, err := s.repo.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			return sess, domain.ErrUnauthenticated
		}
		return sess, fmt.Errorf("load admin: %w", err)
	}
	if !admin.IsAdmin() {
		return sess, domain.ErrForbidden
	}

	target, err := s.repo.FindByID(ctx, targetUserID)
	switch {
	case errors.Is(err, domain.ErrActorNotFound):
		return sess, domain.ErrTargetNotFound
	case err != nil:
		return sess, fmt.Errorf("load impersonation target: %w", err)
	case target.Role != domain.RoleUser:
		return sess, domain.ErrTargetNotFound
	case !target.IsActive:
		return sess, domain.ErrTargetInactive
	case target.IsBanned:
		return sess, domain.ErrTargetBanned
	}

	next := sess.WithImpersonation(target.ID)
	s.audit.Record(domain.AuditEvent{
		Action:       domain.AuditImpersonationStart,
		ActorID:      admin.ID,
		ActorRole:    admin.Role,
		TargetUserID: next.ImpersonatingUserID,
		ClientIP:     clientIP,
		At:           s.clock.Now(),
	})
	s.log.Info().Int64("admin_id", admin.ID).Int64("target_id", target.ID).Msg("impersonation started")
	return next, nil
}

// Exit restores direct identity. changed is false when the session was not
// impersonating, in which case no token needs to be re-issued.
func (s *ImpersonationService) Exit(_ context.Context, sess domain.Session, clientIP string) (domain.Session, bool) {
	if !sess.Impersonating() {
		return sess, false
	}
	target := *sess.ImpersonatingUserID
	s.audit.Record(domain.AuditEvent{
		Action:       domain.AuditImpersonationStop,
		ActorID:      sess.UserID,
		ActorRole:    sess.Role,
		TargetUserID: &target,
		ClientIP:     clientIP,
		At:           s.clock.Now(),
	})
	s.log.Info().Int64("admin_id", sess.UserID).Int64("target_id", target).Msg("impersonation stopped")
	return sess.WithoutImpersonation(), true
}
