package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/polyedge/internal/blob/s3"
	"github.com/alanyoungcy/polyedge/internal/cache/redis"
	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/metrics"
	"github.com/alanyoungcy/polyedge/internal/notify"
	"github.com/alanyoungcy/polyedge/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes build on. Any field other
// than Metrics and Notifier may be nil when its backend is not configured.
type Dependencies struct {
	// Caches and coordination (redis)
	Snapshots domain.SnapshotCache
	Verdicts  domain.VerdictCache
	Limiter   domain.RateLimiter
	Locks     domain.LockManager
	Bus       domain.SignalBus

	// History (postgres)
	AnalysisStore domain.AnalysisStore
	VerdictStore  domain.VerdictStore
	AuditStore    domain.AuditStore

	// Cold storage (s3)
	Archiver      domain.Archiver
	ArchiveReader domain.BlobReader

	Notifier *notify.Notifier
	Metrics  *metrics.Recorder

	// Checks are the health probes of every connected backend.
	Checks map[string]func(ctx context.Context) error
}

// needsRedis reports whether mode cannot run without redis. The API needs the
// bus for the websocket feed and shared guards for consultations.
func needsRedis(mode string) bool {
	return mode == config.ModeServe || mode == config.ModeFull
}

// needsArchive reports whether mode runs the archival job. The API modes only
// read the archive.
func needsArchive(mode string) bool {
	return mode == config.ModeScan || mode == config.ModeFull
}

// Wire connects every configured backend and returns the dependencies with a
// cleanup function that closes them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]func(ctx context.Context) error),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pg.Pool()
		deps.AnalysisStore = postgres.NewAnalysisStore(pool)
		deps.VerdictStore = postgres.NewVerdictStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pg.Ping
	}

	// --- Redis ---
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  keyPrefix(cfg.Redis.Prefix),
		})
		switch {
		case err != nil && needsRedis(mode):
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		case err != nil:
			logger.WarnContext(ctx, "redis unavailable, running without cache and bus",
				slog.String("addr", cfg.Redis.Addr),
				slog.String("error", err.Error()),
			)
		default:
			closers = append(closers, func() { _ = rc.Close() })

			// Snapshots outlive a few missed cycles so API replicas keep serving.
			deps.Snapshots = redis.NewSnapshotCache(rc, 5*cfg.Scanner.Interval.Duration)
			deps.Verdicts = redis.NewVerdictCache(rc, cfg.Oracle.VerdictTTL.Duration)
			deps.Limiter = redis.NewRateLimiter(rc)
			deps.Locks = redis.NewLockManager(rc)
			deps.Bus = redis.NewSignalBus(rc, 0)
			deps.Checks["redis"] = rc.Ping
		}
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled && mode != config.ModeConsult {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.ArchiveReader = s3blob.NewReader(sc)
		if needsArchive(mode) && deps.VerdictStore != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(sc),
				deps.VerdictStore,
				deps.AnalysisStore,
				deps.AuditStore,
				cfg.Archive.BatchSize,
			)
		}
		deps.Checks["s3"] = sc.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.VerdictStore != nil),
		slog.Bool("redis", deps.Bus != nil),
		slog.Bool("archive", deps.Archiver != nil),
		slog.Int("notify_channels", len(senders)),
	)
	return deps, cleanup, nil
}

func keyPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasSuffix(p, ":") {
		return p
	}
	return p + ":"
}
