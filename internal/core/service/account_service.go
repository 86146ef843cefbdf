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

const minPasswordLength = 6

// AccountService covers password changes, member standing and the admin
// bootstrap.
type AccountService struct {
	repo   ports.ActorRepository
	status ports.StatusRepository
	hasher ports.PasswordHasher
	audit  ports.AuditSink
	clock  abtime.AbstractTime
	log    zerolog.Logger
}

func NewAccountService(
	repo ports.ActorRepository,
	status ports.StatusRepository,
	hasher ports.PasswordHasher,
	audit ports.AuditSink,
	clock abtime.AbstractTime,
	log zerolog.Logger,
) *AccountService {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &AccountService{repo: repo, status: status, hasher: hasher, audit: audit, clock: clock, log: log}
}

// ChangePassword lets the effective user change its own password and an
// admin change anyone's. Only non-admins must prove the current password.
func (s *AccountService) ChangePassword(ctx context.Context, by domain.Identity, in ports.ChangePasswordInput) error {
	byAdmin := by.Real().IsAdmin()
	if by.Effective().ID != in.TargetUserID && !byAdmin {
		return domain.ErrForbidden
	}
	if len(in.NewPassword) < minPasswordLength {
		return domain.ErrWeakPassword
	}

	target, err := s.repo.FindByID(ctx, in.TargetUserID)
	if err != nil {
		return err
	}

	if !byAdmin {
		if in.CurrentPassword == "" {
			return domain.ErrCurrentPasswordRequired
		}
		if !s.hasher.Verify(in.CurrentPassword, target.PasswordHash) {
			return domain.ErrCurrentPasswordMismatch
		}
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, target.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.record(domain.AuditPasswordChange, by, target.ID, in.ClientIP)
	return nil
}

// SetStatus changes a member's active/ban flags. Taking a member out of
// service pauses all of their channel assignments in the same write. The bot
// cache is invalidated afterwards on a best-effort basis.
func (s *AccountService) SetStatus(ctx context.Context, by domain.Identity, userID int64, status domain.AccountStatus, clientIP string) (*domain.Actor, error) {
	if !by.Real().IsAdmin() {
		return nil, domain.ErrForbidden
	}

	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != domain.RoleUser {
		return nil, domain.ErrActorNotFound
	}

	status.ApplyTo(target, s.clock.Now().UTC())
	pause := status.PausesAssignments()
	paused, err := s.status.SaveStatus(ctx, target, pause)
	if err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}
	if pause {
		s.log.Info().Int64("user_id", target.ID).Int64("paused", paused).Msg("assignments paused")
	}
	if err := s.status.BumpCacheVersion(ctx); err != nil {
		s.log.Warn().Err(err).Int64("user_id", target.ID).Msg("bot cache invalidation failed")
	}

	s.record(domain.AuditStatusChange, by, target.ID, clientIP)
	return target, nil
}

// EnsureAdmin creates the bootstrap admin or resets its password.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) (*domain.Actor, error) {
	if username == "" || len(password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			return nil, fmt.Errorf("ensure admin %q: %w", username, domain.ErrUserExists)
		}
		if err := s.repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
			return nil, fmt.Errorf("ensure admin: %w", err)
		}
		existing.PasswordHash = hash
		return existing, nil
	case !errors.Is(err, domain.ErrActorNotFound):
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	now := s.clock.Now().UTC()
	return s.repo.Create(ctx, &domain.Actor{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		DisplayName:  "Super Admin",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *AccountService) record(action domain.AuditAction, by domain.Identity, targetID int64, clientIP string) {
	id := targetID
	s.audit.Record(domain.AuditEvent{
		Action:       action,
		ActorID:      by.Real().ID,
		ActorRole:    by.Real().Role,
		TargetUserID: &id,
		ClientIP:     clientIP,
		At:           s.clock.Now(),
	})
}
