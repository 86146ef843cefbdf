package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linkrelay/panel/internal/core/domain"
)

const auditCollection = "audit_events"

// AuditRepository implements ports.AuditRepository.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(auditCollection)}
}

// InsertAuditEvent persists an event to the audit_events collection.
func (r *AuditRepository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	doc := bson.M{
		"action":     string(event.Action),
		"actor_id":   event.ActorID,
		"actor_role": string(event.ActorRole),
		"at":         event.At.UTC(),
	}
	if event.TargetUserID != nil {
		doc["target_user_id"] = *event.TargetUserID
	}
	if event.ClientIP != "" {
		doc["client_ip"] = event.ClientIP
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
