package ports

import (
	"context"

	"github.com/linkrelay/panel/internal/core/domain"
)

// ActorRepository is the persistence port for admins and members, stored in
// one table discriminated by role.
type ActorRepository interface {
	// FindByID returns domain.ErrActorNotFound when no row exists.
	FindByID(ctx context.Context, id int64) (*domain.Actor, error)
	// FindByUsername matches case-insensitively.
	FindByUsername(ctx context.Context, username string) (*domain.Actor, error)
	Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// StatusRepository persists a member's standing and its effect on the bot.
type StatusRepository interface {
	// SaveStatus writes the standing fields of an already mutated actor and,
	// when pause is set, pauses every channel assignment of the actor. Both
	// writes commit together or not at all. It returns how many assignments
	// changed.
	SaveStatus(ctx context.Context, actor *domain.Actor, pause bool) (int64, error)
	// BumpCacheVersion makes the bot reload its active channel list.
	BumpCacheVersion(ctx context.Context) error
}

// AuditRepository persists the audit trail.
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error
}
