package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkrelay/panel/internal/core/domain"
)

// user_channels and cache_version belong to the bot side.
const (
	assignmentsCollection  = "user_channels"
	cacheVersionCollection = "cache_version"
	cacheVersionID         = 1
)

// StatusRepository implements ports.StatusRepository. SaveStatus runs in a
// multi-document transaction, so the server must be a replica set or a
// sharded cluster.
type StatusRepository struct {
	client      *mongo.Client
	actors      *mongo.Collection
	assignments *mongo.Collection
	cache       *mongo.Collection
}

func NewStatusRepository(db *mongo.Database) *StatusRepository {
	return &StatusRepository{
		client:      db.Client(),
		actors:      db.Collection(actorsCollection),
		assignments: db.Collection(assignmentsCollection),
		cache:       db.Collection(cacheVersionCollection),
	}
}

func (r *StatusRepository) SaveStatus(ctx context.Context, actor *domain.Actor, pause bool) (int64, error) {
	sess, err := r.client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.actors.UpdateOne(sc, bson.M{"_id": actor.ID}, statusUpdate(actor))
		if err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, domain.ErrActorNotFound
		}
		if !pause {
			return int64(0), nil
		}
		paused, err := r.assignments.UpdateMany(sc, pauseFilter(actor.ID), pauseUpdate())
		if err != nil {
			return nil, fmt.Errorf("pause assignments: %w", err)
		}
		return paused.ModifiedCount, nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (r *StatusRepository) BumpCacheVersion(ctx context.Context) error {
	_, err := r.cache.UpdateOne(ctx,
		bson.M{"_id": cacheVersionID},
		cacheVersionUpdate(time.Now().UTC()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	return nil
}

func statusUpdate(actor *domain.Actor) bson.M {
	set := bson.M{
		"is_active":     actor.IsActive,
		"is_banned":     actor.IsBanned,
		"banned_reason": actor.BannedReason,
		"bot_enabled":   actor.BotEnabled,
		"updated_at":    actor.UpdatedAt.UTC(),
	}
	if actor.BannedAt != nil {
		set["banned_at"] = actor.BannedAt.UTC()
	} else {
		set["banned_at"] = nil
	}
	return bson.M{"$set": set}
}

func pauseFilter(userID int64) bson.M {
	return bson.M{"user_id": userID, "paused": bson.M{"$ne": true}}
}

func pauseUpdate() bson.M {
	return bson.M{"$set": bson.M{"paused": true}}
}

func cacheVersionUpdate(now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": now},
	}
}
