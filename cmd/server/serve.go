package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dispatch/internal/app"
	"dispatch/internal/changefeed"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, change feed and reconciler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	nrApp := newRelicApp(cfg.NewRelic, log)
	if nrApp != nil {
		defer nrApp.Shutdown(10 * time.Second)
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to redis, continuing without cache, locations or idempotency")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	hub := changefeed.NewHub(changefeed.DefaultBuffer, log)
	defer hub.Close()

	deps := app.EngineDeps{
		Events: hub,
		Config: cfg.Engine,
		Logger: log,
	}
	var source *changefeed.PostgresSource

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		deps.Tx, deps.Repos = store, store.Repositories()
		log.Warn().Msg("using in-memory store, state is lost on exit")
	default:
		db, err := app.NewDatabase(startCtx, cfg.Database, nrApp)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Tx, deps.Repos = postgres.NewTxManager(db), postgres.NewRepositories(db)
		source = changefeed.NewPostgresSource(cfg.Database.DSN(), hub, log)
		log.Info().Str("database", cfg.Database.DBName).Msg("connected to postgres")
	}

	if redisClient != nil {
		deps.Locations = internalRedis.NewLocationStore(redisClient)
		deps.Cache = internalRedis.NewPoolCache(redisClient, cfg.Engine.PoolCacheTTL)
	}

	engine := app.NewEngine(deps)
	server := newHTTPServer(cfg, engine, hub, redisClient, nrApp, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Event streams end when the hub closes.
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	if source != nil {
		g.Go(func() error {
			return source.Run(ctx)
		})
	}

	g.Go(func() error {
		return changefeed.NewPoolWatcher(hub, engine.Pool, log).Run(ctx)
	})

	if nrApp != nil {
		g.Go(func() error {
			return changefeed.NewRecorder(hub, nrApp).Run(ctx)
		})
	}

	g.Go(func() error {
		return runReconciler(ctx, cfg.Engine, engine, redisClient, log)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}

	log.Info().Msg("server exited")
	return nil
}

func newHTTPServer(
	cfg *config.Config,
	engine *app.Engine,
	hub *changefeed.Hub,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	log zerolog.Logger,
) *http.Server {
	router := app.NewRouter(app.RouterDeps{
		RiderHandler:    handler.NewRiderHandler(engine.Registry, engine.Lifecycle, hub),
		OrderHandler:    handler.NewOrderHandler(engine.Pool, engine.Coordinator),
		DeliveryHandler: handler.NewDeliveryHandler(engine.Lifecycle),
		EarningsHandler: handler.NewEarningsHandler(engine.Ledger),
		RedisClient:     redisClient,
		OperatorKey:     cfg.Server.OperatorKey,
		NewRelicApp:     nrApp,
		Logger:          log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// runReconciler runs reconciliation passes on a fixed interval. With Redis
// available the job holds a distributed lock so one instance runs it at a time.
func runReconciler(ctx context.Context, cfg config.EngineConfig, engine *app.Engine, redisClient *redis.Client, log zerolog.Logger) error {
	var opts []gocron.SchedulerOption
	if redisClient != nil {
		opts = append(opts, gocron.WithDistributedLocker(internalRedis.NewLockStore(redisClient, cfg.ReconcileInterval)))
	}

	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.ReconcileInterval),
		gocron.NewTask(reconcileTask(ctx, engine.Reconciler, log)),
		gocron.WithName("reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	log.Info().Dur("interval", cfg.ReconcileInterval).Msg("starting reconciler")
	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}

type reconcileRunner interface {
	Run(ctx context.Context) (service.ReconcileReport, error)
}

// reconcileTask runs one pass. The reconciler logs its own report, so only
// failures are logged here.
func reconcileTask(ctx context.Context, r reconcileRunner, log zerolog.Logger) func() {
	return func() {
		if _, err := r.Run(ctx); err != nil {
			log.Error().Err(err).Msg("reconciliation failed")
		}
	}
}
