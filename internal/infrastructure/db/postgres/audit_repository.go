package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/linkrelay/panel/internal/core/domain"
)

type auditRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Action       string    `gorm:"size:32;not null;index"`
	ActorID      int64     `gorm:"not null;index"`
	ActorRole    string    `gorm:"size:16;not null"`
	TargetUserID *int64    `gorm:"index"`
	ClientIP     string    `gorm:"size:64"`
	At           time.Time `gorm:"not null;index"`
}

func (auditRow) TableName() string { return "audit_events" }

// AuditRepository implements ports.AuditRepository.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	row := auditRow{
		Action:       string(event.Action),
		ActorID:      event.ActorID,
		ActorRole:    string(event.ActorRole),
		TargetUserID: event.TargetUserID,
		ClientIP:     event.ClientIP,
		At:           event.At.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
