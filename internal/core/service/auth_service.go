package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

// AuthService implements the throttled login flow.
type AuthService struct {
	repo    ports.ActorRepository
	hasher  ports.PasswordHasher
	limiter ports.RateLimiter
	audit   ports.AuditSink
	clock   abtime.AbstractTime
	log     zerolog.Logger
}

func NewAuthService(
	repo ports.ActorRepository,
	hasher ports.PasswordHasher,
	limiter ports.RateLimiter,
	audit ports.AuditSink,
	clock abtime.AbstractTime,
	log zerolog.Logger,
) *AuthService {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &AuthService{repo: repo, hasher: hasher, limiter: limiter, audit: audit, clock: clock, log: log}
}

// CheckThrottle reports whether clientID is currently locked out, without
// consuming an attempt. Store errors allow the request.
func (s *AuthService) CheckThrottle(ctx context.Context, clientID string) error {
	decision, err := s.limiter.Check(ctx, clientID)
	if err != nil {
		s.log.Warn().Err(err).Str("client", clientID).Msg("throttle check failed, allowing request")
		return nil
	}
	if !decision.Allowed {
		return decision.RateLimitError(s.clock.Now())
	}
	return nil
}

// Login checks, in order: the throttle, the username, the member's active and
// ban flags, and the password. The throttle step reserves an attempt slot, so
// parallel requests from one client cannot run more verifications than the
// quota. Each failure after it settles the slot as one throttle failure;
// success clears the counter.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	decision, err := s.limiter.Reserve(ctx, in.ClientID)
	if err != nil {
		s.log.Warn().Err(err).Str("client", in.ClientID).Msg("throttle reserve failed, allowing attempt")
	} else if !decision.Allowed {
		return nil, decision.RateLimitError(s.clock.Now())
	}

	actor, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			s.recordFailure(ctx, in.ClientID)
			return nil, domain.ErrInvalidCredentials
		}
		// The reservation lapses with the window.
		return nil, err
	}

	if suspended := actor.Suspension(); suspended != nil {
		s.recordFailure(ctx, in.ClientID)
		return nil, suspended
	}

	if !s.hasher.Verify(in.Password, actor.PasswordHash) {
		s.recordFailure(ctx, in.ClientID)
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.limiter.RecordSuccess(ctx, in.ClientID); err != nil {
		s.log.Warn().Err(err).Str("client", in.ClientID).Msg("throttle reset failed")
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditLogin,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		ClientIP:  in.ClientID,
		At:        s.clock.Now(),
	})
	s.log.Info().Int64("actor_id", actor.ID).Str("role", string(actor.Role)).Msg("login succeeded")

	return &ports.LoginResult{Session: domain.NewSession(actor), Actor: actor}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, clientID string) {
	if err := s.limiter.RecordFailure(ctx, clientID); err != nil {
		s.log.Warn().Err(err).Str("client", clientID).Msg("throttle increment failed")
	}
}

type nopAudit struct{}

func (nopAudit) Record(domain.AuditEvent) {}
