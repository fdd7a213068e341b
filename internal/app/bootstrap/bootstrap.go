package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pollregistry "agora/contexts/polling/poll-registry"
	registrymemory "agora/contexts/polling/poll-registry/adapters/memory"
	registrypostgres "agora/contexts/polling/poll-registry/adapters/postgres"
	registrysqlite "agora/contexts/polling/poll-registry/adapters/sqlite"
	registryworkers "agora/contexts/polling/poll-registry/application/workers"
	registryports "agora/contexts/polling/poll-registry/ports"
	resultsservice "agora/contexts/polling/results-service"
	resultscache "agora/contexts/polling/results-service/adapters/cache"
	resultsmemory "agora/contexts/polling/results-service/adapters/memory"
	resultspostgres "agora/contexts/polling/results-service/adapters/postgres"
	resultssqlite "agora/contexts/polling/results-service/adapters/sqlite"
	resultscommands "agora/contexts/polling/results-service/application/commands"
	resultsworkers "agora/contexts/polling/results-service/application/workers"
	resultsports "agora/contexts/polling/results-service/ports"
	votingengine "agora/contexts/polling/voting-engine"
	votingmemory "agora/contexts/polling/voting-engine/adapters/memory"
	votingpostgres "agora/contexts/polling/voting-engine/adapters/postgres"
	votingsqlite "agora/contexts/polling/voting-engine/adapters/sqlite"
	votingcommands "agora/contexts/polling/voting-engine/application/commands"
	votingqueries "agora/contexts/polling/voting-engine/application/queries"
	votingworkers "agora/contexts/polling/voting-engine/application/workers"
	votingports "agora/contexts/polling/voting-engine/ports"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	sqlite   *db.SQLite
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	sqlite        *db.SQLite
	expiry        registryworkers.ExpiryCloser
	registryRelay registryworkers.OutboxRelay
	votingRelay   votingworkers.OutboxRelay
	drift         votingworkers.DriftSweeper
	refresh       resultsworkers.RefreshSweeper
	consumer      resultsworkers.PollEventsConsumer
	enableExpiry  bool
	enableRelay   bool
	enableDrift   bool
	enableRefresh bool
	pollInterval  time.Duration
	logger        *slog.Logger
}

// storageBackends carries the driver-specific port bindings. The module
// assembly on top of them is the same for every driver.
type storageBackends struct {
	registryDeps pollregistry.Dependencies
	votingDeps   votingengine.Dependencies
	resultsDeps  resultsservice.Dependencies

	registryExpiry registryports.ExpiryRepository
	registryOutbox registryports.OutboxRepository
	votingOutbox   votingports.OutboxRepository
	resultsDedup   resultsports.EventDedupStore

	postgres *db.Postgres
	sqlite   *db.SQLite
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	backends, err := openBackends(cfg, logger)
	if err != nil {
		return nil, err
	}

	cache := resultscache.NewSnapshotCache(cfg.ResultsCacheSize, cfg.ResultsCacheTTL, cfg.ResultsFinalCacheTTL)

	registryDeps := backends.registryDeps
	registryDeps.IdempotencyTTL = 7 * 24 * time.Hour
	registryDeps.Logger = logger
	registryModule := pollregistry.NewModule(registryDeps)

	resultsDeps := backends.resultsDeps
	resultsDeps.Tallies = liveTallyProvider{query: votingqueries.CurrentTallyUseCase{
		Catalog: backends.votingDeps.Catalog,
		Ledger:  backends.votingDeps.Ledger,
		Tallies: backends.votingDeps.Tallies,
		Logger:  logger,
	}}
	resultsDeps.Cache = cache
	resultsDeps.Logger = logger
	resultsModule := resultsservice.NewModule(resultsDeps)

	votingDeps := backends.votingDeps
	votingDeps.Notifier = snapshotNotifier{apply: resultscommands.ApplyVoteUseCase{
		Cache:     cache,
		Snapshots: resultsDeps.Snapshots,
		Clock:     resultsDeps.Clock,
		Logger:    logger,
	}}
	votingDeps.Logger = logger
	votingModule := votingengine.NewModule(votingDeps)

	server := httpserver.New(
		registryModule,
		votingModule,
		resultsModule,
		logger,
		normalizeAddr(cfg.HTTPPort),
		cfg.VoterSalt,
	)
	return &APIApp{
		server:   server,
		postgres: backends.postgres,
		sqlite:   backends.sqlite,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.StorageDriver == config.DriverMemory {
		return nil, errors.New("worker process requires a durable storage driver")
	}

	backends, err := openBackends(cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	cache := resultscache.NewSnapshotCache(cfg.ResultsCacheSize, cfg.ResultsCacheTTL, cfg.ResultsFinalCacheTTL)
	tallies := liveTallyProvider{query: votingqueries.CurrentTallyUseCase{
		Catalog: backends.votingDeps.Catalog,
		Ledger:  backends.votingDeps.Ledger,
		Tallies: backends.votingDeps.Tallies,
		Logger:  logger,
	}}
	refresh := resultscommands.RefreshResultsUseCase{
		Directory: backends.resultsDeps.Directory,
		Tallies:   tallies,
		Cache:     cache,
		Snapshots: backends.resultsDeps.Snapshots,
		Clock:     backends.resultsDeps.Clock,
		Logger:    logger,
	}

	return &WorkerApp{
		postgres: backends.postgres,
		sqlite:   backends.sqlite,
		expiry: registryworkers.ExpiryCloser{
			Polls:     backends.registryExpiry,
			Clock:     backends.registryDeps.Clock,
			BatchSize: cfg.WorkerBatchSize,
			Logger:    logger,
		},
		registryRelay: registryworkers.OutboxRelay{
			Outbox:    backends.registryOutbox,
			Publisher: kafka,
			Clock:     backends.registryDeps.Clock,
			BatchSize: cfg.WorkerBatchSize,
			Logger:    logger,
		},
		votingRelay: votingworkers.OutboxRelay{
			Outbox:    backends.votingOutbox,
			Publisher: kafka,
			Clock:     backends.votingDeps.Clock,
			BatchSize: cfg.WorkerBatchSize,
			Logger:    logger,
		},
		drift: votingworkers.DriftSweeper{
			Rebuild: votingcommands.RebuildTallyUseCase{
				Catalog: backends.votingDeps.Catalog,
				Ledger:  backends.votingDeps.Ledger,
				Tallies: backends.votingDeps.Tallies,
				Logger:  logger,
			},
			Ledger:    backends.votingDeps.Ledger,
			BatchSize: cfg.WorkerBatchSize,
			Logger:    logger,
		},
		refresh: resultsworkers.RefreshSweeper{
			Directory: backends.resultsDeps.Directory,
			Refresh:   refresh,
			BatchSize: cfg.WorkerBatchSize,
			Logger:    logger,
		},
		consumer: resultsworkers.PollEventsConsumer{
			Subscriber: kafka,
			Dedup:      backends.resultsDedup,
			Apply: resultscommands.ApplyVoteUseCase{
				Cache:     cache,
				Snapshots: backends.resultsDeps.Snapshots,
				Clock:     backends.resultsDeps.Clock,
				Logger:    logger,
			},
			Refresh:       refresh,
			Clock:         backends.resultsDeps.Clock,
			ConsumerGroup: "results-service-polling-events-cg",
			DedupTTL:      7 * 24 * time.Hour,
			Disabled:      !cfg.EnableResultsConsumer,
			Logger:        logger,
		},
		enableExpiry:  cfg.EnablePollExpiry,
		enableRelay:   cfg.EnableOutboxRelay,
		enableDrift:   cfg.EnableDriftSweep,
		enableRefresh: cfg.EnableResultsRefresh,
		pollInterval:  cfg.WorkerPollInterval,
		logger:        logger,
	}, nil
}

func openBackends(cfg config.Config, logger *slog.Logger) (storageBackends, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return storageBackends{}, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return storageBackends{}, err
		}

		registryRepo := registrypostgres.NewRepository(pg.DB, logger)
		votingRepo := votingpostgres.NewRepository(pg.DB, logger)
		resultsRepo := resultspostgres.NewRepository(pg.DB, logger)
		return storageBackends{
			registryDeps: pollregistry.Dependencies{
				Polls:       registryRepo,
				Idempotency: registryRepo,
				Outbox:      registryRepo,
				Clock:       registrypostgres.SystemClock{},
				IDGenerator: registrypostgres.UUIDGenerator{},
			},
			votingDeps: votingengine.Dependencies{
				Catalog:     votingRepo,
				Claims:      votingRepo,
				Ledger:      votingRepo,
				Tallies:     votingRepo,
				Outbox:      votingRepo,
				Clock:       votingpostgres.SystemClock{},
				IDGenerator: votingpostgres.UUIDGenerator{},
			},
			resultsDeps: resultsservice.Dependencies{
				Directory: resultsRepo,
				Snapshots: resultsRepo,
				Clock:     resultspostgres.SystemClock{},
			},
			registryExpiry: registryRepo,
			registryOutbox: registryRepo,
			votingOutbox:   votingRepo,
			resultsDedup:   resultsRepo,
			postgres:       pg,
		}, nil

	case config.DriverSQLite:
		sq, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return storageBackends{}, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		registryRepo := registrysqlite.NewRepository(sq.DB, logger)
		votingRepo := votingsqlite.NewRepository(sq.DB, logger)
		resultsRepo := resultssqlite.NewRepository(sq.DB, logger)
		for _, ensure := range []func(context.Context) error{
			registryRepo.EnsureSchema,
			votingRepo.EnsureSchema,
			resultsRepo.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				_ = sq.Close()
				return storageBackends{}, err
			}
		}

		return storageBackends{
			registryDeps: pollregistry.Dependencies{
				Polls:       registryRepo,
				Idempotency: registryRepo,
				Outbox:      registryRepo,
				Clock:       registrysqlite.SystemClock{},
				IDGenerator: registrysqlite.UUIDGenerator{},
			},
			votingDeps: votingengine.Dependencies{
				Catalog:     votingRepo,
				Claims:      votingRepo,
				Ledger:      votingRepo,
				Tallies:     votingRepo,
				Outbox:      votingRepo,
				Clock:       votingsqlite.SystemClock{},
				IDGenerator: votingsqlite.UUIDGenerator{},
			},
			resultsDeps: resultsservice.Dependencies{
				Directory: resultsRepo,
				Snapshots: resultsRepo,
				Clock:     resultssqlite.SystemClock{},
			},
			registryExpiry: registryRepo,
			registryOutbox: registryRepo,
			votingOutbox:   votingRepo,
			resultsDedup:   resultsRepo,
			sqlite:         sq,
		}, nil

	case config.DriverMemory:
		// Single process only. Every API replica owns a private copy, so
		// this driver is for local development and tests.
		registryStore := registrymemory.NewStore(nil)
		votingStore := votingmemory.NewStore(nil)
		resultsStore := resultsmemory.NewStore(nil)
		return storageBackends{
			registryDeps: pollregistry.Dependencies{
				Polls:       registryStore,
				Idempotency: registryStore,
				Outbox:      registryStore,
				Clock:       registryStore,
				IDGenerator: registryStore,
			},
			votingDeps: votingengine.Dependencies{
				Catalog:     pollStateCatalog{polls: registryStore},
				Claims:      votingStore,
				Ledger:      votingStore,
				Tallies:     votingStore,
				Outbox:      votingStore,
				Clock:       votingStore,
				IDGenerator: votingStore,
			},
			resultsDeps: resultsservice.Dependencies{
				Directory: pollSummaryDirectory{polls: registryStore},
				Snapshots: resultsStore,
				Clock:     resultsStore,
			},
			registryExpiry: registryStore,
			registryOutbox: registryStore,
			votingOutbox:   votingStore,
			resultsDedup:   resultsStore,
		}, nil
	}

	return storageBackends{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	if a.sqlite != nil {
		return a.sqlite.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.consumer.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.enableExpiry {
			if err := w.expiry.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableRelay {
			if err := w.registryRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.votingRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableDrift {
			if err := w.drift.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableRefresh {
			if err := w.refresh.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	if w.sqlite != nil {
		return w.sqlite.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
