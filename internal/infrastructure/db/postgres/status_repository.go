package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/linkrelay/panel/internal/core/domain"
)

// user_channels and cache_version are owned and migrated by the bot side.
const (
	assignmentsTable = "user_channels"

	bumpCacheVersionSQL = `INSERT INTO cache_version (id, version, updated_at) VALUES (1, 1, NOW()) ` +
		`ON CONFLICT (id) DO UPDATE SET version = cache_version.version + 1, updated_at = NOW()`
)

// StatusRepository implements ports.StatusRepository.
type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// SaveStatus writes the standing fields and, when pause is set, pauses the
// member's channel assignments in the same transaction.
func (r *StatusRepository) SaveStatus(ctx context.Context, actor *domain.Actor, pause bool) (int64, error) {
	var paused int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := updateStatus(tx, actor)
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrActorNotFound
		}
		if !pause {
			return nil
		}
		res = pauseAssignments(tx, actor.ID)
		if res.Error != nil {
			return fmt.Errorf("pause assignments: %w", res.Error)
		}
		paused = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return paused, nil
}

// BumpCacheVersion tells the bot to reload its channel cache.
func (r *StatusRepository) BumpCacheVersion(ctx context.Context) error {
	if err := bumpCacheVersion(r.db.WithContext(ctx)).Error; err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	return nil
}

func updateStatus(tx *gorm.DB, actor *domain.Actor) *gorm.DB {
	return tx.Model(&actorRow{}).Where("id = ?", actor.ID).
		Updates(map[string]any{
			"is_active":     actor.IsActive,
			"is_banned":     actor.IsBanned,
			"banned_at":     actor.BannedAt,
			"banned_reason": actor.BannedReason,
			"bot_enabled":   actor.BotEnabled,
			"updated_at":    actor.UpdatedAt.UTC(),
		})
}

func pauseAssignments(tx *gorm.DB, userID int64) *gorm.DB {
	return tx.Table(assignmentsTable).
		Where("user_id = ? AND paused = ?", userID, false).
		Update("paused", true)
}

func bumpCacheVersion(tx *gorm.DB) *gorm.DB {
	return tx.Exec(bumpCacheVersionSQL)
}
