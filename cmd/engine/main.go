// Package main is the entry point of the Kary sync engine: the
// cross-role synchronization and notification backend for the Kary
// educational platform.
//
// The engine wires config, logging, storage (in-memory or PostgreSQL),
// the event bus with its dispatcher, the five application services and
// the background scheduler, then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kary-hub/kary-sync-engine/config"
	"github.com/kary-hub/kary-sync-engine/internal/application/entitystore"
	"github.com/kary-hub/kary-sync-engine/internal/application/fanout"
	"github.com/kary-hub/kary-sync-engine/internal/application/lifecycle"
	"github.com/kary-hub/kary-sync-engine/internal/application/linkflow"
	"github.com/kary-hub/kary-sync-engine/internal/application/syncagg"
	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	domainsync "github.com/kary-hub/kary-sync-engine/internal/domain/sync"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/external/content"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/messaging"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/memstore"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/postgres"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/redis"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/snapshot"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/scheduler"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/kary-hub/kary-sync-engine/internal/interface/http"
	"github.com/kary-hub/kary-sync-engine/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// repositories groups one storage backend's repository set.
type repositories struct {
	persons       person.Repository
	activities    activity.Repository
	casefiles     casefile.Repository
	notifications notification.Repository
	links         link.Repository
}

func run() error {
	// ──────────────────────────────────────────────────────────────────────
	// Config and logging
	// ──────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Setup(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Text:   cfg.Observability.LogFormat == "text",
	})

	log.Info("starting kary sync engine",
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
		"storage", cfg.Storage.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──────────────────────────────────────────────────────────────────────
	// Storage
	// ──────────────────────────────────────────────────────────────────────
	repos, closeStorage, err := buildRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	// ──────────────────────────────────────────────────────────────────────
	// Redis (parent view cache + job locks), optional
	// ──────────────────────────────────────────────────────────────────────
	var (
		cache     *redis.Cache
		viewCache domainsync.ViewCache
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, running without view cache", "error", err)
		} else {
			defer cache.Close()
			viewCache = redis.NewParentViewCache(cache)
		}
	}

	// ──────────────────────────────────────────────────────────────────────
	// Event bus and dispatcher
	// ──────────────────────────────────────────────────────────────────────
	bus := messaging.NewBus(messaging.Config{Logger: log, EnableMetrics: true})

	dispatcherCfg := messaging.DefaultDispatcherConfig(bus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	// ──────────────────────────────────────────────────────────────────────
	// Application services
	// ──────────────────────────────────────────────────────────────────────
	entityStore := entitystore.NewService(repos.persons, repos.casefiles, bus, log)
	activities := lifecycle.NewService(repos.activities, bus, log)
	notifier := fanout.NewService(repos.notifications, bus, log)
	linkFlow := linkflow.NewService(repos.links, repos.persons, bus, log)
	aggregator := syncagg.NewService(
		repos.persons, repos.activities, repos.notifications, repos.links,
		viewCache, bus, log,
	)
	if cfg.Content.BaseURL != "" {
		providerCfg := content.DefaultPrimaryConfig(cfg.Content.BaseURL)
		providerCfg.APIKey = cfg.Content.APIKey
		providerCfg.Timeout = cfg.Content.RequestTimeout
		providerCfg.Logger = log
		notifier.SetEnricher(content.NewPrimary(providerCfg))
	}

	registerEventHandlers(dispatcher, notifier, aggregator)

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("dispatcher start: %w", err)
	}
	defer dispatcher.Stop()

	// ──────────────────────────────────────────────────────────────────────
	// Snapshot import/export (memory driver)
	// ──────────────────────────────────────────────────────────────────────
	var snapshotStore *snapshot.Store
	if cfg.Storage.Driver == config.StorageMemory && cfg.Storage.SnapshotDir != "" {
		snapshotStore = snapshot.NewStore(cfg.Storage.SnapshotDir, log)
		if err := snapshotStore.Import(ctx, snapshotRepos(repos)); err != nil {
			return fmt.Errorf("snapshot import: %w", err)
		}
	}

	// ──────────────────────────────────────────────────────────────────────
	// Scheduler
	// ──────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = buildScheduler(cfg, log, cache, linkFlow, aggregator)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler start: %w", err)
		}
	}

	// ──────────────────────────────────────────────────────────────────────
	// HTTP API
	// ──────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	}, httpapi.Dependencies{
		Entities:      entityStore,
		Activities:    activities,
		Notifications: notifier,
		Links:         linkFlow,
		Views:         aggregator,
		Jobs:          sched,
		Logger:        log,
	})
	serverErr := server.StartAsync()

	log.Info("kary sync engine started", "address", server.Address())

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	// ──────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ──────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}

	if snapshotStore != nil {
		if err := snapshotStore.Export(shutdownCtx, snapshotRepos(repos)); err != nil {
			log.Error("snapshot export failed", "error", err)
		}
	}

	log.Info("kary sync engine stopped")
	return nil
}

// buildRepositories returns the repository set for the configured driver
// and a close function for the underlying storage.
func buildRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (repositories, func(), error) {
	if cfg.Storage.Driver == config.StoragePostgres {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return repositories{}, nil, fmt.Errorf("postgres connect: %w", err)
		}

		if cfg.Database.RunMigrations {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return repositories{}, nil, fmt.Errorf("migrations: %w", err)
			}
		}

		log.Info("postgres storage ready")
		return repositories{
			persons:       postgres.NewPersonRepository(conn),
			activities:    postgres.NewActivityRepository(conn),
			casefiles:     postgres.NewCasefileRepository(conn),
			notifications: postgres.NewNotificationRepository(conn),
			links:         postgres.NewLinkRepository(conn),
		}, conn.Close, nil
	}

	log.Info("in-memory storage ready")
	return repositories{
		persons:       memstore.NewPersonRepository(),
		activities:    memstore.NewActivityRepository(),
		casefiles:     memstore.NewCasefileRepository(),
		notifications: memstore.NewNotificationRepository(),
		links:         memstore.NewLinkRepository(),
	}, func() {}, nil
}

// registerEventHandlers attaches the fan-out engine and the aggregator's
// cache invalidation to the dispatcher.
func registerEventHandlers(d *messaging.Dispatcher, notifier *fanout.Service, aggregator *syncagg.Service) {
	notify := func(event shared.Event) error {
		return notifier.HandleEvent(context.Background(), event)
	}

	for _, eventType := range []shared.EventType{
		shared.EventCaseCreated,
		shared.EventSupportPlanCreated,
		shared.EventActivityFeedbackAdded,
		shared.EventLinkRequestCreated,
		shared.EventLinkRequestApproved,
		shared.EventLinkRequestRejected,
		shared.EventLinkRequestExpired,
		shared.EventProgressAlert,
	} {
		_ = d.Register(eventType, "fanout", notify)
	}

	// Progress changes make cached parent views stale.
	invalidate := func(event shared.Event) error {
		e, ok := event.(shared.ActivityProgressUpdatedEvent)
		if !ok {
			return nil
		}
		return aggregator.InvalidateStudent(context.Background(), e.Student)
	}
	_ = d.Register(shared.EventActivityProgressUpdated, "syncagg-invalidate", invalidate)
	_ = d.Register(shared.EventActivitySubmitted, "syncagg-invalidate", func(event shared.Event) error {
		e, ok := event.(shared.ActivitySubmittedEvent)
		if !ok {
			return nil
		}
		return aggregator.InvalidateStudent(context.Background(), e.Student)
	})
}

// buildScheduler registers the maintenance jobs with their intervals.
func buildScheduler(
	cfg *config.Config,
	log *slog.Logger,
	cache *redis.Cache,
	linkFlow *linkflow.Service,
	aggregator *syncagg.Service,
) (*scheduler.Scheduler, error) {
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	var locker jobs.Locker
	if cache != nil {
		locker = cache
	}

	expireSchedule, err := jobSchedule(cfg.Scheduler.ExpireLinkRequestsCron, cfg.Scheduler.ExpireLinkRequestsInterval)
	if err != nil {
		return nil, fmt.Errorf("expire links schedule: %w", err)
	}
	expireCfg := jobs.DefaultExpireLinkRequestsConfig()
	expireCfg.Timeout = cfg.Scheduler.JobTimeout
	expireJob := jobs.NewExpireLinkRequestsJob(linkFlow, locker, log, expireCfg)
	if err := sched.Register(expireJob, expireSchedule); err != nil {
		return nil, err
	}

	refreshSchedule, err := jobSchedule(cfg.Scheduler.RefreshParentViewsCron, cfg.Scheduler.RefreshParentViewsInterval)
	if err != nil {
		return nil, fmt.Errorf("refresh views schedule: %w", err)
	}
	refreshCfg := jobs.DefaultRefreshParentViewsConfig()
	refreshCfg.Timeout = cfg.Scheduler.JobTimeout
	refreshJob := jobs.NewRefreshParentViewsJob(aggregator, locker, log, refreshCfg)
	if err := sched.Register(refreshJob, refreshSchedule); err != nil {
		return nil, err
	}

	return sched, nil
}

// jobSchedule prefers a cron expression when one is configured, falling back
// to a fixed interval.
func jobSchedule(cron string, interval time.Duration) (scheduler.Schedule, error) {
	if cron != "" {
		return scheduler.ParseCronExpression(cron)
	}
	return scheduler.NewIntervalSchedule(interval), nil
}

func snapshotRepos(r repositories) snapshot.Repositories {
	return snapshot.Repositories{
		Persons:       r.persons,
		Activities:    r.activities,
		Casefiles:     r.casefiles,
		Notifications: r.notifications,
		Links:         r.links,
	}
}
