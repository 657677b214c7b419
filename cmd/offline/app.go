package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"news_offline/internal/cache"
	"news_offline/internal/config"
	"news_offline/internal/connectivity"
	"news_offline/internal/domain"
	"news_offline/internal/hooks"
	"news_offline/internal/maintenance"
	"news_offline/internal/publisher"
	"news_offline/internal/queue"
	"news_offline/internal/remote"
	"news_offline/internal/service"
	"news_offline/internal/store"
	"news_offline/internal/store/boltstore"
	"news_offline/internal/store/sqlstore"
)

// app is the fully wired agent shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store      store.Store
	remoteOnly bool

	caches     *cache.Set
	queue      *queue.Queue
	remote     *remote.Client
	publisher  *publisher.RabbitMQ
	sync       *service.SyncService
	monitor    *connectivity.Monitor
	hooks      *hooks.Hooks
	maintainer *maintenance.Maintainer
}

func newApp(ctx context.Context, path string) (*app, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return nil, err
	}
	logger = setupLogger(cfg.LogLevel)

	a := &app{cfg: cfg, logger: logger}

	a.store = openStore(cfg.Store, logger)
	if err := a.store.Initialize(ctx); err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		logger.Warn("local store unavailable, running remote-only", "driver", cfg.Store.Driver, "error", err)
		a.remoteOnly = true
	}

	a.caches = cache.New(a.store, logger, nil)
	a.queue = queue.New(a.store, logger, nil)
	a.remote = remote.New(cfg.Remote, logger)
	a.monitor = connectivity.New(a.remote, cfg.Connectivity, logger)
	a.hooks = hooks.New(a.remote, a.caches, a.queue, a.monitor, cfg.Hooks, logger)
	a.maintainer = maintenance.New(a.store, a.caches.Metadata, cfg.Cache, logger, nil)

	// A nil *RabbitMQ must not reach the service as a non-nil interface.
	var deadLetters service.DeadLetterPublisher
	if cfg.RabbitMQ.Enabled {
		a.publisher, err = publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			_ = a.store.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		deadLetters = a.publisher
	}

	a.sync = service.NewSyncService(
		a.queue,
		a.remote,
		a.caches.Favorites,
		a.caches.Metadata,
		deadLetters,
		logger,
		cfg.Queue,
	)
	a.sync.OnAbandoned(func(item domain.SyncQueueItem, reason error) {
		logger.Warn("queued change discarded",
			"id", item.ID,
			"operation", item.Operation,
			"retry_count", item.RetryCount,
			"reason", reason,
		)
	})

	return a, nil
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) store.Store {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlstore.New(sqlstore.DriverSQLite, sqlstore.SQLiteDSN(cfg.Path), logger)
	case config.DriverPostgres:
		return sqlstore.New(sqlstore.DriverPostgres, cfg.Database.DSN(), logger)
	default:
		return boltstore.New(cfg.Path, logger)
	}
}

// drain runs one bounded drain pass.
func (a *app) drain(ctx context.Context) (*domain.DrainStats, error) {
	if a.remoteOnly {
		return nil, domain.ErrStoreUnavailable
	}
	if a.cfg.Sync.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Sync.DrainTimeout)
		defer cancel()
	}
	return a.sync.Drain(ctx)
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}
