package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/martelinho/martelinho/internal/blob/s3"
	"github.com/martelinho/martelinho/internal/cache/local"
	"github.com/martelinho/martelinho/internal/cache/redis"
	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/config"
	"github.com/martelinho/martelinho/internal/copygen"
	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
	"github.com/martelinho/martelinho/internal/notify"
	"github.com/martelinho/martelinho/internal/server/handler"
	"github.com/martelinho/martelinho/internal/store/postgres"
	"github.com/martelinho/martelinho/internal/store/snapshot"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional collaborators are nil when not configured.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	AuditStore  domain.AuditStore
	Codec       codec.Codec

	// Caches
	ListingCache domain.ListingCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	Archiver *s3blob.Archiver

	// Copy generation
	Copy domain.CopyGenerator

	// Notifications
	Notifier *notify.Notifier

	// Health probes keyed by backing service.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	c, err := codec.ByName(cfg.Storage.Codec)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Codec = c

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.ListingCache = redis.NewListingCache(redisClient, time.Duration(cfg.Redis.CacheTTLMinutes)*time.Minute)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = local.NewSignalBus()
	}

	// --- S3 blob storage (optional) ---
	var (
		blobReader *s3blob.Reader
		blobWriter *s3blob.Writer
	)
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		blobReader = s3blob.NewReader(s3Client)
		blobWriter = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Market store ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		market, audit := pgClient.Stores()
		seeded, err := market.SeedIfEmpty(ctx, lifecycle.Seed(time.Now().UTC()))
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		if seeded {
			logger.InfoContext(ctx, "seeded empty listings table")
		}
		deps.MarketStore = market
		deps.AuditStore = audit
		deps.Checks["postgres"] = pgClient.Ping

	default:
		port, err := snapshotPort(cfg, c, redisClient, blobReader, blobWriter)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		store := snapshot.New(port, c, lifecycle.Seed, logger)
		if err := store.Load(ctx); err != nil {
			return fail(fmt.Errorf("wire: load snapshot: %w", err))
		}
		closers = append(closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Flush(flushCtx); err != nil {
				logger.Error("flush snapshot failed", slog.String("error", err.Error()))
			}
		})
		deps.MarketStore = store
	}

	if blobWriter != nil && cfg.Archive.Enabled {
		deps.Archiver = s3blob.NewArchiver(blobWriter, blobReader, deps.MarketStore, deps.AuditStore)
	}

	// --- Copy generation ---
	if cfg.Copygen.APIKey != "" {
		g, err := copygen.New(ctx, copygen.Config{APIKey: cfg.Copygen.APIKey, Model: cfg.Copygen.Model}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: copygen: %w", err))
		}
		closers = append(closers, func() { _ = g.Close() })
		deps.Copy = g
	} else {
		logger.InfoContext(ctx, "copygen: no api key, using static copy")
		deps.Copy = copygen.Static{}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// snapshotPort selects the key/blob backend for the snapshot store.
func snapshotPort(
	cfg *config.Config,
	c codec.Codec,
	redisClient *redis.Client,
	blobReader *s3blob.Reader,
	blobWriter *s3blob.Writer,
) (domain.SnapshotPort, error) {
	switch cfg.Storage.Port {
	case "memory":
		return snapshot.NewMemoryPort(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("snapshot port redis: redis.addr not set")
		}
		return redis.NewSnapshotPort(redisClient), nil
	case "s3":
		if blobReader == nil {
			return nil, fmt.Errorf("snapshot port s3: s3.bucket not set")
		}
		return s3blob.NewSnapshotPort(blobReader, blobWriter, "."+c.Name(), c.ContentType()), nil
	default:
		return snapshot.NewFilePort(cfg.Storage.Dir, "."+c.Name())
	}
}
