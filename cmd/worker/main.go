// Command worker runs the commerce sync engine: the recurring scheduler, the
// worker pool that executes sync and webhook jobs, and the admin HTTP surface.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/erp/commercesync/internal/application/integration"
	"github.com/erp/commercesync/internal/infrastructure/config"
	"github.com/erp/commercesync/internal/infrastructure/ecommerce"
	"github.com/erp/commercesync/internal/infrastructure/logger"
	"github.com/erp/commercesync/internal/infrastructure/persistence"
	"github.com/erp/commercesync/internal/infrastructure/scheduler"
	"github.com/erp/commercesync/internal/infrastructure/telemetry"
	"github.com/erp/commercesync/internal/interfaces/http/handler"
	"github.com/erp/commercesync/internal/interfaces/http/router"
)

// shutdownTimeout bounds the graceful stop of every component
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Process:    "worker",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter := telemetry.ExporterConfig{
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}

	// OTEL logs are bridged first so every later component logs through them
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		ExporterConfig: exporter,
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize OpenTelemetry logs", zap.Error(err))
	}
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		log = logProvider.BridgeLogger(log, cfg.Telemetry.ServiceName, level)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting commerce sync worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("queue_backend", cfg.Scheduler.QueueBackend),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		ExporterConfig: exporter,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRatio:  cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ExporterConfig: exporter,
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Profiling.ApplicationName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	var redisClient *redis.Client
	var queue scheduler.Queue
	switch cfg.Scheduler.QueueBackend {
	case config.QueueBackendRedis:
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		queueCfg := scheduler.DefaultRedisQueueConfig()
		if cfg.Redis.KeyPrefix != "" {
			queueCfg.KeyPrefix = cfg.Redis.KeyPrefix
		}
		if cfg.Scheduler.QueueLease > 0 {
			queueCfg.Lease = cfg.Scheduler.QueueLease
		}
		queue = scheduler.NewRedisQueue(redisClient, queueCfg)
		log.Info("Using Redis job queue", zap.String("addr", cfg.Redis.Addr()))
	default:
		queue = scheduler.NewMemoryQueue()
	}

	// Repositories and services
	storeRepo := persistence.NewGormStoreRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	eventRepo := persistence.NewGormWebhookEventRepository(db.DB)

	platform, err := ecommerce.NewRESTClient(ecommerce.RESTConfig{
		APIPathPrefix:     cfg.Commerce.APIPathPrefix,
		DefaultAPIVersion: cfg.Commerce.DefaultAPIVersion,
		RequestTimeout:    cfg.Commerce.RequestTimeout,
		MaxResponseSize:   cfg.Commerce.MaxResponseSize,
		UserAgent:         cfg.Commerce.UserAgent,
	}, log)
	if err != nil {
		log.Fatal("Invalid commerce client configuration", zap.Error(err))
	}

	reconciler := appintegration.NewReconciler(orderRepo, productRepo)
	syncService := appintegration.NewSyncService(storeRepo, platform, reconciler, appintegration.SyncConfig{
		PageSize:        cfg.Sync.PageSize,
		InitialLookback: cfg.Sync.InitialLookback,
	}, log.Named("sync"))

	validator, err := appintegration.NewPayloadValidator()
	if err != nil {
		log.Fatal("Failed to compile webhook payload schemas", zap.Error(err))
	}
	webhookProcessor := appintegration.NewWebhookProcessor(eventRepo, storeRepo, reconciler, validator, appintegration.WebhookConfig{
		Provider:  cfg.Sync.WebhookProvider,
		BatchSize: cfg.Sync.WebhookBatchSize,
	}, log.Named("webhooks"))

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meterProvider.Meter("commercesync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}
	syncService.SetObserver(syncMetrics)
	webhookProcessor.SetObserver(syncMetrics)

	// Scheduling
	sched, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		TickInterval: cfg.Scheduler.TickInterval,
	}, queue, log.Named("scheduler"))
	if err != nil {
		log.Fatal("Invalid scheduler configuration", zap.Error(err))
	}

	discoverer, err := scheduler.NewStoreDiscoverer(storeRepo, sched, scheduler.CadenceConfig{
		OrderSyncInterval:   cfg.Scheduler.OrderSyncInterval,
		ProductSyncInterval: cfg.Scheduler.ProductSyncInterval,
		WebhookInterval:     cfg.Scheduler.WebhookInterval,
		DiscoveryInterval:   cfg.Scheduler.DiscoveryInterval,
	}, log.Named("discovery"))
	if err != nil {
		log.Fatal("Invalid scheduler cadence", zap.Error(err))
	}

	dispatcher := scheduler.NewDispatcher(syncService, webhookProcessor, discoverer, log.Named("dispatcher"))
	pool, err := scheduler.NewWorkerPool(scheduler.PoolConfig{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		DispatchRate:      cfg.Scheduler.DispatchRate,
		DispatchBurst:     cfg.Scheduler.DispatchBurst,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	}, queue, dispatcher, log.Named("pool"))
	if err != nil {
		log.Fatal("Invalid worker pool configuration", zap.Error(err))
	}
	pool.SetObserver(syncMetrics)

	promRegistry := telemetry.NewPrometheusRegistry(log)
	for _, register := range []func() error{
		func() error { return promRegistry.RegisterPool(pool) },
		func() error { return promRegistry.RegisterQueue(queue) },
		func() error { return promRegistry.RegisterSchedules(sched) },
	} {
		if err := register(); err != nil {
			log.Fatal("Failed to register Prometheus collector", zap.Error(err))
		}
	}

	if cfg.Scheduler.Enabled {
		if err := discoverer.Bootstrap(ctx); err != nil {
			log.Fatal("Failed to bootstrap schedules", zap.Error(err))
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatal("Failed to start worker pool", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Scheduler started",
			zap.Int("schedules", sched.Count()),
			zap.Int("max_concurrent_jobs", pool.Capacity()),
		)
	} else {
		log.Warn("Scheduler disabled, no jobs will run")
	}

	var adminServer *router.AdminServer
	if cfg.HTTP.Enabled {
		checks := []handler.HealthCheck{{Name: "database", Check: db.Ping}}
		if redisClient != nil {
			checks = append(checks, handler.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			})
		}
		engine := router.NewAdminEngine(router.AdminDeps{
			Logger:         log.Named("http"),
			ServiceName:    cfg.Telemetry.ServiceName,
			TracingEnabled: cfg.Telemetry.Enabled,
			Schedules:      sched,
			Stores:         storeRepo,
			Checks:         checks,
			Metrics:        promRegistry.Handler(),
		})
		adminServer = router.NewAdminServer(cfg.HTTP.Addr, engine, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, log)
		adminServer.Start()
	}

	var serverErr <-chan error
	if adminServer != nil {
		serverErr = adminServer.Err()
	}
	select {
	case <-ctx.Done():
		log.Info("Shutting down commerce sync worker...")
	case err, ok := <-serverErr:
		if ok && err != nil {
			log.Error("Admin server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Admin server forced to shutdown", zap.Error(err))
		}
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
		if err := pool.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping worker pool", zap.Error(err))
		}
	}
	if err := queue.Close(); err != nil {
		log.Error("Error closing job queue", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log provider", zap.Error(err))
	}

	log.Info("Commerce sync worker stopped")
}
