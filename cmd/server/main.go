package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/application/bot"
	"github.com/dilly/tablebot/internal/domain/delivery"
	"github.com/dilly/tablebot/internal/infrastructure/analytics"
	"github.com/dilly/tablebot/internal/infrastructure/cache"
	"github.com/dilly/tablebot/internal/infrastructure/config"
	"github.com/dilly/tablebot/internal/infrastructure/logger"
	"github.com/dilly/tablebot/internal/infrastructure/persistence"
	"github.com/dilly/tablebot/internal/infrastructure/rendering"
	"github.com/dilly/tablebot/internal/infrastructure/scheduler"
	"github.com/dilly/tablebot/internal/infrastructure/storage"
	"github.com/dilly/tablebot/internal/infrastructure/telemetry"
	"github.com/dilly/tablebot/internal/infrastructure/whatsapp"
	"github.com/dilly/tablebot/internal/interfaces/http/handler"
	"github.com/dilly/tablebot/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting tablebot",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	renderMetrics, err := telemetry.NewRenderMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create render metrics", zap.Error(err))
	}
	messageMetrics, err := telemetry.NewMessageMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create message metrics", zap.Error(err))
	}

	// Delivery log
	deliveries, closeDB := openDeliveries(&cfg.Database, log)
	defer closeDB()

	// Idempotency store
	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Cache, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Rendering
	engine := rendering.NewChromedpEngine(&rendering.ChromedpConfig{
		ExecPath:  cfg.Render.ChromePath,
		RemoteURL: cfg.Render.ChromeRemoteURL,
		NoSandbox: cfg.Render.NoSandbox,
		Logger:    log,
	})
	renderer, err := rendering.NewTableRenderer(engine, &rendering.Config{
		OutputDir:           cfg.Render.OutputDir,
		StagingDir:          cfg.Render.StagingDir,
		UniqueArtifactNames: cfg.Render.UniqueNames,
		LaunchTimeout:       cfg.Render.LaunchTimeout,
		LoadTimeout:         cfg.Render.LoadTimeout,
		CaptureTimeout:      cfg.Render.CaptureTimeout,
		Markup: rendering.MarkupOptions{
			Title:        cfg.Render.Title,
			EscapeValues: cfg.Render.EscapeValues,
		},
		Logger:   log,
		Recorder: renderMetrics,
	})
	if err != nil {
		log.Fatal("Failed to create table renderer", zap.Error(err))
	}
	if !cfg.Render.UniqueNames {
		log.Warn("Artifacts share a fixed file name; concurrent renders overwrite each other",
			zap.String("hint", "set render.unique_names = true"))
	}

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create artifact publisher", zap.Error(err))
	}

	// External APIs
	analyticsClient := analytics.NewClient(&analytics.Config{
		BaseURL: cfg.Analytics.BaseURL,
		Timeout: cfg.Analytics.Timeout,
		Logger:  log,
	})
	shops := analytics.NewShopDirectory(analyticsClient, &analytics.ShopDirectoryConfig{
		PreferredShop: cfg.Analytics.PreferredShop,
		FallbackShop:  cfg.Analytics.FallbackShop,
		TTL:           cfg.Analytics.ShopCacheTTL,
		Logger:        log,
	})
	warmCtx, cancelWarm := context.WithTimeout(ctx, cfg.Analytics.Timeout)
	log.Info("Known shops loaded", zap.Strings("shops", shops.Refresh(warmCtx)))
	cancelWarm()
	messenger, err := whatsapp.NewClient(&whatsapp.Config{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		APIVersion:    cfg.WhatsApp.APIVersion,
		BaseURL:       cfg.WhatsApp.BaseURL,
		Timeout:       cfg.WhatsApp.Timeout,
		Logger:        log,
	})
	if err != nil {
		log.Fatal("Failed to create WhatsApp client", zap.Error(err))
	}

	// Bot
	service, err := bot.NewService(messenger, analyticsClient, shops, renderer, publisher, &bot.ServiceConfig{
		DefaultPrompt: cfg.Bot.DefaultPrompt,
		DedupTTL:      cfg.Cache.IdempotencyTTL,
		Idempotency:   idempotency,
		Deliveries:    deliveries,
		Recorder:      messageMetrics,
		Logger:        log,
	})
	if err != nil {
		log.Fatal("Failed to create bot service", zap.Error(err))
	}
	dispatcher := bot.NewDispatcher(service, &bot.DispatcherConfig{
		MaxConcurrent:  cfg.Bot.MaxConcurrent,
		MessageTimeout: cfg.Bot.MessageTimeout,
		Logger:         log,
	})

	// Artifact retention
	retention, err := scheduler.NewRetentionScheduler(rendering.PruneArtifacts, log, scheduler.RetentionSchedulerConfig{
		Dir:      renderer.OutputDir(),
		MaxAge:   cfg.Render.Retention,
		Interval: cfg.Render.RetentionInterval,
	})
	if err != nil {
		log.Fatal("Failed to create retention scheduler", zap.Error(err))
	}
	if err := retention.Start(ctx); err != nil {
		log.Fatal("Failed to start retention scheduler", zap.Error(err))
	}

	// HTTP
	ginEngine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	r := router.NewRouter(ginEngine).
		Register(router.WebhookRoutes{
			Handler: handler.NewWebhookHandler(dispatcher, service, handler.WebhookConfig{
				VerifyToken: cfg.Webhook.VerifyToken,
				AppSecret:   cfg.Webhook.AppSecret,
				MaxPayload:  cfg.HTTP.MaxBodySize,
			}),
			MaxBodySize: cfg.HTTP.MaxBodySize,
		}).
		Register(router.SystemRoutes{Handler: handler.NewSystemHandler(cfg.App.Name, version)})
	if cfg.Storage.Driver == storage.DriverLocal {
		r.Register(router.ArtifactRoutes{Dir: renderer.OutputDir()})
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn("In-flight messages were cancelled", zap.Error(err))
	}
	if err := retention.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping retention scheduler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracing", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openDeliveries connects the delivery log, or discards records when no database is configured
func openDeliveries(cfg *config.DatabaseConfig, log *zap.Logger) (delivery.Repository, func()) {
	db, err := persistence.NewDatabase(cfg, log)
	if errors.Is(err, persistence.ErrDatabaseDisabled) {
		log.Info("Database disabled, deliveries are not recorded")
		return persistence.NoopDeliveryRepository{}, func() {}
	}
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Driver))

	return persistence.NewGormDeliveryRepository(db.DB), func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}
}

// newPublisher selects the artifact publisher for the storage driver
func newPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Publisher, error) {
	if cfg.Storage.Driver == storage.DriverS3 {
		s3Publisher, err := storage.NewS3Publisher(ctx, &cfg.Storage.S3, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if cfg.Storage.S3.CreateBucket {
			if err := s3Publisher.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return s3Publisher, nil
	}

	baseURL := cfg.Storage.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.App.Port
		log.Warn("storage.public_base_url not set, artifact links only work locally",
			zap.String("public_base_url", baseURL))
	}
	return storage.NewLocalPublisher(&storage.LocalPublisherConfig{
		OutputDir:     cfg.Render.OutputDir,
		PublicBaseURL: baseURL,
		Logger:        log,
	})
}
