// Command server runs the scheduler's HTTP API and, when enabled, its
// embedded persistent scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marketpulse/scheduler/internal/api"
	"github.com/marketpulse/scheduler/internal/config"
	"github.com/marketpulse/scheduler/internal/coordinator"
	"github.com/marketpulse/scheduler/internal/database"
	"github.com/marketpulse/scheduler/internal/dependency"
	"github.com/marketpulse/scheduler/internal/distlock"
	"github.com/marketpulse/scheduler/internal/httpserver"
	"github.com/marketpulse/scheduler/internal/ingestion"
	"github.com/marketpulse/scheduler/internal/loader"
	"github.com/marketpulse/scheduler/internal/logger"
	"github.com/marketpulse/scheduler/internal/metrics"
	"github.com/marketpulse/scheduler/internal/provider"
	"github.com/marketpulse/scheduler/internal/rangecalc"
	"github.com/marketpulse/scheduler/internal/ratelimiter"
	"github.com/marketpulse/scheduler/internal/retrypolicy"
	"github.com/marketpulse/scheduler/internal/scheduler"
	"github.com/marketpulse/scheduler/internal/searchindex"
	"github.com/marketpulse/scheduler/internal/worker"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Persistent data-ingestion scheduler and coordinator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	log.Info("starting scheduler service", "server_address", cfg.ServerAddress)

	db, err := connectDB(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	store := database.NewStore(db)

	metricsHook, err := metrics.NewPrometheusHook(prometheus.DefaultRegisterer)
	if err != nil {
		log.Warn("metrics: failed to register collectors, continuing without metrics", "error", err)
		metricsHook = metrics.NewNop()
	}

	var indexClient *searchindex.Client
	if cfg.ElasticsearchURL != "" {
		indexClient, err = searchindex.NewClient(ctx, searchindex.Config{URL: cfg.ElasticsearchURL}, log)
		if err != nil {
			log.Warn("searchindex: failed to connect, continuing without mirroring", "error", err)
			indexClient = nil
		}
	}

	mirroredStore := &mirroringStore{Store: store, index: indexClient}
	mirroredLogs := &mirroringLogStore{repo: store.Logs, index: indexClient}

	providers := provider.NewRegistry()
	resolver := provider.JobResolver{Registry: providers}

	rangeCalc := rangecalc.New(store.Assets)
	mapper := loader.NewMapper()
	ld := loader.NewLoader(db, false)
	pipeline := ingestion.New(store.Assets, rangeCalc, mapper, ld, mirroredLogs, ingestion.Config{
		IncrementalEnabled: true,
		ConflictPolicy:     loader.ConflictDoNothing,
	}, log)

	deps := dependency.New(store.Jobs, store.Deps, store.Executions)

	limiter := ratelimiter.New(log)
	var coord *coordinator.Coordinator
	if cfg.EnableRequestCoordinator {
		coord = coordinator.New(coordinator.Config{
			Enabled: true,
			Window:  durationFromSeconds(cfg.RequestCoordinatorWindowSecs),
			Limiter: limiter,
		}, log)
	}

	pool := worker.NewPool(worker.Config{PoolSize: cfg.SchedulerMaxWorkers}, log)

	// scheduler.New and retrypolicy.New each need the other's interface;
	// schedulerHolder is constructed first and handed to the retry
	// controller, then populated once the real scheduler exists.
	holder := &schedulerHolder{}
	retryController := retrypolicy.New(mirroredStore, holder, log)

	sched := scheduler.New(
		scheduler.Config{},
		mirroredStore,
		pipeline,
		deps,
		retryController,
		resolver,
		coord,
		metricsHook,
		pool,
		log,
	)
	holder.inner = sched
	sched.SetRetryChecker(retryController)

	if cfg.RedisURL != "" {
		locker, lockErr := distlock.New(cfg.RedisURL, log)
		if lockErr != nil {
			log.Warn("distlock: failed to build client, running single-instance", "error", lockErr)
		} else if pingErr := locker.Ping(ctx); pingErr != nil {
			log.Warn("distlock: redis unreachable, running single-instance", "error", pingErr)
		} else {
			sched.SetLocker(locker)
			defer locker.Close()
		}
	}

	jobsHandler := api.NewJobsHandler(mirroredStore, sched, log)
	router := api.NewRouter(jobsHandler, log, cfg.CORSOriginList())

	if cfg.EnableEmbeddedScheduler {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := httpserver.NewServer(router, httpserver.Config{Address: cfg.ServerAddress}, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := srv.RunWithGracefulShutdown(runCtx)

	if cfg.EnableEmbeddedScheduler {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpserver.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := sched.Shutdown(shutdownCtx); err != nil {
			log.Error("scheduler: shutdown error", "error", err)
		}
	}

	return runErr
}

func connectDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.Name, cfg.DB.User, cfg.DB.Password, cfg.DB.SSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	return db, nil
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return coordinator.DefaultWindow
	}
	return time.Duration(s * float64(time.Second))
}
