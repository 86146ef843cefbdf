package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

// IdentityService resolves sessions against fresh storage state. It never
// caches actors between calls, so bans and deactivations apply on the next
// request.
type IdentityService struct {
	repo ports.ActorRepository
}

func NewIdentityService(repo ports.ActorRepository) *IdentityService {
	return &IdentityService{repo: repo}
}

// CurrentActor loads the authenticated actor of sess. An actor whose stored
// role no longer matches the token is treated as missing.
func (s *IdentityService) CurrentActor(ctx context.Context, sess *domain.Session) (*domain.Actor, error) {
	if sess == nil {
		return nil, domain.ErrUnauthenticated
	}
	actor, err := s.repo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if actor.Role != sess.Role {
		return nil, domain.ErrActorNotFound
	}
	return actor, nil
}

// Resolve returns the effective identity. A vanished impersonation target is
// reported as ErrImpersonationTargetGone rather than falling back to the admin.
func (s *IdentityService) Resolve(ctx context.Context, sess *domain.Session) (domain.Identity, error) {
	actor, err := s.CurrentActor(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.ImpersonatingUserID == nil || sess.Role != domain.RoleAdmin {
		return domain.Direct{Actor: actor}, nil
	}

	target, err := s.repo.FindByID(ctx, *sess.ImpersonatingUserID)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			return nil, domain.ErrImpersonationTargetGone
		}
		return nil, fmt.Errorf("resolve impersonation target: %w", err)
	}
	imp, err := domain.NewImpersonation(actor, target)
	if err != nil {
		return nil, domain.ErrImpersonationTargetGone
	}
	return imp, nil
}

func (s *IdentityService) Authorize(id domain.Identity) error {
	return domain.CheckAccess(id)
}
