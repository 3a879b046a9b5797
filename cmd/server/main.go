package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	inventoryapp "github.com/beataims/backend/internal/application/inventory"
	orderapp "github.com/beataims/backend/internal/application/order"
	syncapp "github.com/beataims/backend/internal/application/sync"
	"github.com/beataims/backend/internal/infrastructure/cache"
	"github.com/beataims/backend/internal/infrastructure/config"
	"github.com/beataims/backend/internal/infrastructure/logger"
	"github.com/beataims/backend/internal/infrastructure/persistence"
	"github.com/beataims/backend/internal/infrastructure/pool"
	"github.com/beataims/backend/internal/infrastructure/remote"
	"github.com/beataims/backend/internal/infrastructure/scheduler"
	"github.com/beataims/backend/internal/infrastructure/telemetry"
	"github.com/beataims/backend/internal/interfaces/http/handler"
	"github.com/beataims/backend/internal/interfaces/http/router"
	"github.com/beataims/backend/internal/realtime"
)

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
		_ = log.Sync()
	}()

	log.Info("Starting inventory backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Tracing (no-op unless enabled)
	tracer, err := telemetry.NewTracerProvider(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = tracer.Shutdown(context.Background())
	}()

	// Connection pool over postgres
	dbPool, err := pool.New(pool.Config{
		Size:           cfg.Pool.Size,
		AcquireRetries: cfg.Pool.AcquireRetries,
		RetryBaseDelay: cfg.Pool.RetryBaseDelay,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		SweepInterval:  cfg.Pool.SweepInterval,
		LeakWindow:     cfg.Pool.LeakWindow,
		LeaseCeiling:   cfg.Pool.LeaseCeiling,
		MaxDirect:      cfg.Pool.MaxDirect,
	}, persistence.PostgresOpener(&cfg.Database), persistence.PostgresDialector, log)
	if err != nil {
		log.Fatal("Failed to initialize connection pool", zap.Error(err))
	}
	defer dbPool.Stop()
	dbPool.Start(rootCtx)
	log.Info("Database pool ready", zap.Int("size", cfg.Pool.Size))

	// Schema migration
	if err := dbPool.WithTransaction(rootCtx, persistence.Migrate); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Snapshot guard for the inbound webhook (redis when available)
	var guard cache.SnapshotGuard
	if cfg.Redis.Enabled {
		guard, err = cache.NewRedisSnapshotGuard(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, 0)
		if err != nil {
			log.Fatal("Failed to connect snapshot guard to Redis", zap.Error(err))
		}
	} else {
		guard = cache.NewInMemorySnapshotGuard(0)
	}
	defer func() {
		_ = guard.Close()
	}()

	// Websocket hub
	hub := realtime.NewHub(cfg.Realtime, log)
	hub.Start(rootCtx)
	defer hub.Stop()

	// Outbound webhook notifier
	sinks := []orderapp.StockEventSink{hub}
	var notifier *syncapp.Notifier
	if cfg.Notifier.Enabled {
		adapter, err := remote.NewCafeAdapter(cfg.Notifier.WebhookURL, cfg.Notifier.PushTimeout)
		if err != nil {
			log.Fatal("Failed to configure webhook notifier", zap.Error(err))
		}
		notifier = syncapp.NewNotifier(adapter, cfg.Notifier.QueueSize, cfg.Notifier.PushTimeout, log)
		notifier.Start(rootCtx)
		defer notifier.Stop()
		sinks = append(sinks, notifier)
	}

	// Application services
	stockSinks := make([]inventoryapp.StockEventSink, len(sinks))
	for i, s := range sinks {
		stockSinks[i] = s
	}
	stockService := inventoryapp.NewStockService(dbPool, func(tx *gorm.DB) inventoryapp.Repositories {
		return inventoryapp.Repositories{
			Products: persistence.NewGormProductRepository(tx),
			Batches:  persistence.NewGormStockBatchRepository(tx),
			Ledger:   persistence.NewGormLedgerRepository(tx),
		}
	}, log, stockSinks...)

	fulfillmentService := orderapp.NewFulfillmentService(dbPool, func(tx *gorm.DB) orderapp.Repositories {
		return orderapp.Repositories{
			Products: persistence.NewGormProductRepository(tx),
			Batches:  persistence.NewGormStockBatchRepository(tx),
			Ledger:   persistence.NewGormLedgerRepository(tx),
			Orders:   persistence.NewGormOrderRepository(tx),
			Sales:    persistence.NewGormSaleRecordRepository(tx),
		}
	}, log, sinks...)

	syncFactory := func(tx *gorm.DB) syncapp.Repositories {
		return syncapp.Repositories{
			Products: persistence.NewGormProductRepository(tx),
			Mappings: persistence.NewGormMappingRepository(tx),
		}
	}
	reconciler := syncapp.NewReconciler(dbPool, syncFactory, log)

	// Periodic reconciliation sweep
	if cfg.Sync.Enabled {
		sweep := scheduler.NewIntervalRunner("reconciliation_sweep", cfg.Sync.SweepInterval, func(ctx context.Context) error {
			_, err := reconciler.RunOnce(ctx)
			return err
		}, log)
		sweep.Start(rootCtx)
		defer sweep.Stop()
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	systemHandler := handler.NewSystemHandler(dbPool)
	systemHandler.RegisterHealthRoute(engine)
	engine.GET("/ws/inventory", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	router.NewRouter(engine).
		Register(handler.NewProductHandler(stockService)).
		Register(handler.NewOrderHandler(fulfillmentService, hub)).
		Register(handler.NewSyncHandler(dbPool, syncFactory, guard, reconciler, log)).
		Register(systemHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
