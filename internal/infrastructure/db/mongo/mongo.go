package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	connectTimeout         = 10 * time.Second
	defaultMaxPoolSize     = 20
	defaultSelectorTimeout = 5 * time.Second
)

// Config selects the deployment and sizes the client pool. Zero values take
// the defaults above.
type Config struct {
	URI             string
	Database        string
	AppName         string
	MaxPoolSize     uint64
	SelectorTimeout time.Duration
	Timeout         time.Duration
}

// clientOptions reads from the primary with majority writes, which the status
// transaction relies on.
func clientOptions(cfg Config) *options.ClientOptions {
	pool := cfg.MaxPoolSize
	if pool == 0 {
		pool = defaultMaxPoolSize
	}
	selector := cfg.SelectorTimeout
	if selector <= 0 {
		selector = defaultSelectorTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(pool).
		SetServerSelectionTimeout(selector).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority())
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	return opts
}

// Connect opens the client, pings the primary and returns the database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := clientOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, nil, fmt.Errorf("mongo options: %w", err)
	}
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}
	return client, client.Database(cfg.Database), nil
}
