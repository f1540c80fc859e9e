package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediocregopher/radix/v3"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/config"
	mongodb "github.com/CypherNinjaa/social-media-sub000/internal/infra/db/mongo"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/db/postgres"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/feed/scylla"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/obs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/ratelimit"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/realtime"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/storage/memory"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/storage/s3"
)

// backends holds the infrastructure chosen from configuration. Every piece
// falls back to its in-memory version when its address is empty.
type backends struct {
	uow         uow.UoWFactory
	profiles    profile.Directory
	outbox      outbox.Store
	idempotency middleware.IdempotencyStore
	limiter     middleware.Limiter
	deduper     realtime.Deduper
	feed        realtime.Feed
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: make(map[string]obs.Check)}
	steps := []func(context.Context, config.Config, *slog.Logger) error{
		b.openStore,
		b.openDocuments,
		b.openAvatars,
		b.openLimiter,
		b.openFeed,
	}
	for _, step := range steps {
		if err := step(ctx, cfg, logger); err != nil {
			b.close(logger)
			return nil, err
		}
	}
	return b, nil
}

func (b *backends) openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory message store")
		b.uow = memory.Factory{Store: memory.NewStore()}
		return nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func(context.Context) error { return postgres.Close(db) })
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	b.uow = postgres.Factory{DB: db}
	b.checks["postgres"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	return nil
}

// openDocuments sets up profiles, the outbox, idempotency records and the
// realtime inbox, all of which live in MongoDB when configured.
func (b *backends) openDocuments(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set; using in-memory outbox and profiles")
		b.profiles = memory.NewProfileDirectory()
		b.outbox = memory.NewEventStore()
		b.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		b.deduper = realtime.NewMemoryDeduper(0)
		return nil
	}
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Close)
	b.checks["mongo"] = client.Ping

	if b.outbox, err = mongodb.NewOutboxStore(ctx, client.DB); err != nil {
		return err
	}
	if b.idempotency, err = mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
		return err
	}
	if b.deduper, err = mongodb.NewInboxStore(ctx, client.DB, cfg.KafkaGroupID); err != nil {
		return err
	}
	b.profiles = mongodb.NewProfileDirectory(client.DB)
	return nil
}

func (b *backends) openAvatars(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.S3Endpoint == "" {
		return nil
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:  cfg.S3PublicEndpoint,
		UseSSL:    cfg.S3UseSSL,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		URLTTL:    cfg.AvatarURLTTL,
	}, logger)
	if err != nil {
		return err
	}
	b.checks["s3"] = client.Ping
	b.profiles = s3.AvatarDirectory{Next: b.profiles, Presigner: client, Logger: logger}
	return nil
}

func (b *backends) openLimiter(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.RedisAddr == "" {
		b.limiter = ratelimit.NewMemory(cfg.SendRateLimit, cfg.SendRateWindow)
		return nil
	}
	pool, err := ratelimit.NewRedisPool(cfg.RedisAddr, 10)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func(context.Context) error { return pool.Close() })
	b.checks["redis"] = func(context.Context) error { return pool.Do(radix.Cmd(nil, "PING")) }
	b.limiter = ratelimit.NewRedis(pool, cfg.SendRateLimit, cfg.SendRateWindow)
	logger.Info("send rate limit backed by redis", "limit", cfg.SendRateLimit, "window", cfg.SendRateWindow)
	return nil
}

func (b *backends) openFeed(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if len(cfg.ScyllaHosts) == 0 {
		b.feed = realtime.NewMemoryFeed(0)
		return nil
	}
	session, err := scylla.NewSession(scylla.Options{
		Hosts:             cfg.ScyllaHosts,
		Keyspace:          cfg.ScyllaKeyspace,
		Username:          cfg.ScyllaUsername,
		Password:          cfg.ScyllaPassword,
		Consistency:       cfg.ScyllaConsistency,
		Timeout:           cfg.ScyllaTimeout,
		ReplicationFactor: cfg.ScyllaReplicationFactor,
	}, logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func(context.Context) error {
		session.Close()
		return nil
	})
	b.checks["scylla"] = func(ctx context.Context) error {
		return session.Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
	}
	b.feed = scylla.NewFeed(session, cfg.FeedTTL, logger)
	return nil
}

func (b *backends) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}
	b.closers = nil
}
