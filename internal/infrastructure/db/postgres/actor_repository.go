package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/linkrelay/panel/internal/core/domain"
)

// actorRow is the unified admins/members table.
type actorRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Username         string `gorm:"size:64;not null"`
	UsernameLower    string `gorm:"size:64;not null;uniqueIndex"`
	PasswordHash     string `gorm:"not null"`
	Role             string `gorm:"size:16;not null;index"`
	DisplayName      string
	TelegramID       *int64 `gorm:"uniqueIndex"`
	TelegramUsername string
	FirstName        string
	LastName         string
	PhotoURL         string
	LastSeen         *time.Time
	IsActive         bool `gorm:"not null;default:true"`
	IsBanned         bool `gorm:"not null;default:false"`
	BannedAt         *time.Time
	BannedReason     string
	BotEnabled       bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (actorRow) TableName() string { return "actors" }

// ActorRepository implements ports.ActorRepository with gorm.
type ActorRepository struct {
	db *gorm.DB
}

func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) FindByID(ctx context.Context, id int64) (*domain.Actor, error) {
	var row actorRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "find actor")
	}
	return row.toDomain(), nil
}

func (r *ActorRepository) FindByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	var row actorRow
	err := r.db.WithContext(ctx).
		Where("username_lower = ?", strings.ToLower(username)).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "find actor")
	}
	return row.toDomain(), nil
}

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	row := fromDomain(actor)
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("create actor: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ActorRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&actorRow{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": passwordHash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrActorNotFound
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrActorNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func fromDomain(a *domain.Actor) *actorRow {
	return &actorRow{
		ID:               a.ID,
		Username:         a.Username,
		UsernameLower:    strings.ToLower(a.Username),
		PasswordHash:     a.PasswordHash,
		Role:             string(a.Role),
		DisplayName:      a.DisplayName,
		TelegramID:       a.TelegramID,
		TelegramUsername: a.TelegramUsername,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		PhotoURL:         a.PhotoURL,
		LastSeen:         a.LastSeen,
		IsActive:         a.IsActive,
		IsBanned:         a.IsBanned,
		BannedAt:         a.BannedAt,
		BannedReason:     a.BannedReason,
		BotEnabled:       a.BotEnabled,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func (r *actorRow) toDomain() *domain.Actor {
	return &domain.Actor{
		ID:               r.ID,
		Username:         r.Username,
		PasswordHash:     r.PasswordHash,
		Role:             domain.Role(r.Role),
		DisplayName:      r.DisplayName,
		TelegramID:       r.TelegramID,
		TelegramUsername: r.TelegramUsername,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		PhotoURL:         r.PhotoURL,
		LastSeen:         r.LastSeen,
		IsActive:         r.IsActive,
		IsBanned:         r.IsBanned,
		BannedAt:         r.BannedAt,
		BannedReason:     r.BannedReason,
		BotEnabled:       r.BotEnabled,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
