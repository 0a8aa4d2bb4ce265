// Package bootstrap opens the shared store backend and its supporting
// connections from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	"github.com/noah-isme/dz-manifest-api/pkg/cache"
	"github.com/noah-isme/dz-manifest-api/pkg/config"
	"github.com/noah-isme/dz-manifest-api/pkg/database"
)

// StoreMetrics receives store latency and lost compare-and-swap races.
type StoreMetrics interface {
	store.Observer
	RecordCASConflict(collection string)
}

// Backend bundles the opened store with the clients behind it.
type Backend struct {
	Store      store.Store
	Transactor *store.Transactor
	DB         *sqlx.DB
	Redis      *redis.Client

	redisStore *store.RedisStore
	logger     *zap.Logger
}

// OpenStore connects the configured backend. Postgres is also opened for the
// memory and redis backends when the period archive is enabled, since the
// archive and audit tables live there.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics StoreMetrics) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{logger: logger}

	needDB := cfg.Store.Backend == config.StorePostgres || cfg.Periods.ArchiveEnabled
	if needDB {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		schema := []string{repository.AuditSchema, repository.PeriodArchiveSchema}
		if cfg.Store.Backend == config.StorePostgres {
			schema = append([]string{store.Schema}, schema...)
		}
		if err := database.EnsureSchema(ctx, db, schema...); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.DB = db
	}

	var base store.Store
	switch cfg.Store.Backend {
	case config.StoreMemory, "":
		base = store.NewMemoryStore()
	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Redis = client
		b.redisStore = store.NewRedisStore(client, cfg.Store.KeyPrefix, logger.Named("redis-store"))
		base = b.redisStore
	case config.StorePostgres:
		base = store.NewPostgresStore(b.DB, logger.Named("postgres-store"))
	default:
		b.Close()
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	if metrics != nil {
		base = store.Instrument(base, metrics)
	}
	b.Store = base
	b.Transactor = store.NewTransactor(base, cfg.Store.MaxRetries)
	b.Transactor.OnConflict = func(key string, attempt int) {
		collection, _ := store.SplitKey(key)
		if metrics != nil {
			metrics.RecordCASConflict(collection)
		}
		logger.Debug("store write lost a race", zap.String("key", key), zap.Int("attempt", attempt))
	}
	return b, nil
}

// Listen relays cross-instance change events until ctx is done. Only the
// redis backend has a shared feed; the call returns at once otherwise.
func (b *Backend) Listen(ctx context.Context) {
	if b.redisStore == nil {
		return
	}
	backoff := time.Second
	for {
		err := b.redisStore.Listen(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("store change feed dropped, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Checks returns a readiness probe per external dependency.
func (b *Backend) Checks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}
	if b.DB != nil {
		checks["postgres"] = func(ctx context.Context) error { return b.DB.PingContext(ctx) }
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases every opened client.
func (b *Backend) Close() {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			b.logger.Warn("close redis", zap.Error(err))
		}
	}
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			b.logger.Warn("close postgres", zap.Error(err))
		}
	}
}
