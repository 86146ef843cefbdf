package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkrelay/panel/internal/core/domain"
)

const (
	actorsCollection   = "actors"
	countersCollection = "counters"
)

// ActorRepository implements ports.ActorRepository. Admins and members share
// one collection; numeric ids come from a counters document so session tokens
// carry the same ids under either store.
type ActorRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewActorRepository(db *mongo.Database) *ActorRepository {
	return &ActorRepository{
		col:      db.Collection(actorsCollection),
		counters: db.Collection(countersCollection),
	}
}

type mongoActor struct {
	ID               int64      `bson:"_id"`
	Username         string     `bson:"username"`
	UsernameLower    string     `bson:"username_lower"`
	PasswordHash     string     `bson:"password_hash"`
	Role             string     `bson:"role"`
	DisplayName      string     `bson:"display_name,omitempty"`
	TelegramID       *int64     `bson:"telegram_id,omitempty"`
	TelegramUsername string     `bson:"telegram_username,omitempty"`
	FirstName        string     `bson:"first_name,omitempty"`
	LastName         string     `bson:"last_name,omitempty"`
	PhotoURL         string     `bson:"photo_url,omitempty"`
	LastSeen         *time.Time `bson:"last_seen,omitempty"`
	IsActive         bool       `bson:"is_active"`
	IsBanned         bool       `bson:"is_banned"`
	BannedAt         *time.Time `bson:"banned_at,omitempty"`
	BannedReason     string     `bson:"banned_reason,omitempty"`
	BotEnabled       bool       `bson:"bot_enabled"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func (r *ActorRepository) FindByID(ctx context.Context, id int64) (*domain.Actor, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ActorRepository) FindByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	return r.findOne(ctx, bson.M{"username_lower": strings.ToLower(username)})
}

func (r *ActorRepository) findOne(ctx context.Context, filter bson.M) (*domain.Actor, error) {
	var doc mongoActor
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrActorNotFound
		}
		return nil, fmt.Errorf("find actor: %w", err)
	}
	return toDomainActor(&doc), nil
}

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}
	doc := fromDomainActor(actor)
	doc.ID = id

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert actor: %w", err)
	}
	return toDomainActor(doc), nil
}

func (r *ActorRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrActorNotFound
	}
	return nil
}

// nextID atomically increments the actors sequence.
func (r *ActorRepository) nextID(ctx context.Context) (int64, error) {
	var seq struct {
		Value int64 `bson:"value"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": actorsCollection},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&seq)
	if err != nil {
		return 0, fmt.Errorf("next actor id: %w", err)
	}
	return seq.Value, nil
}

// EnsureIndexes creates the indexes the actor lookups rely on.
func (r *ActorRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func fromDomainActor(a *domain.Actor) *mongoActor {
	return &mongoActor{
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
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
	}
}

func toDomainActor(m *mongoActor) *domain.Actor {
	return &domain.Actor{
		ID:               m.ID,
		Username:         m.Username,
		PasswordHash:     m.PasswordHash,
		Role:             domain.Role(m.Role),
		DisplayName:      m.DisplayName,
		TelegramID:       m.TelegramID,
		TelegramUsername: m.TelegramUsername,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		PhotoURL:         m.PhotoURL,
		LastSeen:         m.LastSeen,
		IsActive:         m.IsActive,
		IsBanned:         m.IsBanned,
		BannedAt:         m.BannedAt,
		BannedReason:     m.BannedReason,
		BotEnabled:       m.BotEnabled,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
