package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-reservation/internal/config"
	"github.com/iliyamo/showtime-reservation/internal/database"
	"github.com/iliyamo/showtime-reservation/internal/handler"
	"github.com/iliyamo/showtime-reservation/internal/lock"
	"github.com/iliyamo/showtime-reservation/internal/logger"
	"github.com/iliyamo/showtime-reservation/internal/metrics"
	"github.com/iliyamo/showtime-reservation/internal/middleware"
	"github.com/iliyamo/showtime-reservation/internal/queue"
	"github.com/iliyamo/showtime-reservation/internal/repository"
	"github.com/iliyamo/showtime-reservation/internal/router"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "showtime-reservation",
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// ---- Storage ----
	var (
		store repository.Store
		db    *sql.DB
	)
	switch cfg.StoreBackend {
	case config.StoreMySQL:
		var err error
		db, err = database.Open(database.Options{
			User:            cfg.DBUser,
			Pass:            cfg.DBPass,
			Host:            cfg.DBHost,
			Port:            cfg.DBPort,
			Name:            cfg.DBName,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			lg.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		store = repository.NewMySQLStore(db)
	default:
		lg.Warn("using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	}

	// ---- Redis: cache, rate limit, optional distributed lock ----
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		lg.Warn("redis unavailable; cache and rate limiting disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	locker := newLocker(cfg, rdb, lg)

	// ---- Engine ----
	opts := []service.Option{
		service.WithLogger(lg),
		service.WithMetrics(m),
		service.WithLockTimeout(cfg.LockWait),
	}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL, lg)
		defer pub.Close()
		opts = append(opts, service.WithNotifier(pub))
	}
	engine := service.NewBookingEngine(store, locker, opts...)
	catalog := service.NewCatalogService(store, locker, lg)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, lg)

	// ---- Background consumers ----
	if cfg.EventsEnabled {
		removals := queue.NewConsumer(cfg.RabbitURL, queue.CatalogRemovedQueue, queue.CatalogRemovalHandler(engine, cache, lg), lg)
		go func() {
			if err := removals.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("catalog removal consumer stopped", zap.Error(err))
			}
		}()
		if cfg.AuditLogPath != "" {
			audit := queue.NewConsumer(cfg.RabbitURL, queue.ReservationEventsQueue, queue.NewAuditLog(cfg.AuditLogPath).Handler(), lg)
			go func() {
				if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lg.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover(), middleware.RequestID(), middleware.RequestLogger(lg))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg)

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, pinger, m.Handler())
	router.RegisterPublic(e, handler.NewPublicHandler(catalog), cache.Middleware())
	router.RegisterCustomer(e, handler.NewBookingHandler(engine, catalog), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine, catalog, cache), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreBackend), zap.String("lock", cfg.LockBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLocker(cfg config.Config, rdb *redis.Client, lg *logger.Logger) lock.Locker {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocalLocker()
	}
	if rdb == nil {
		lg.Fatal("LOCK_BACKEND=redis requires a reachable redis")
	}
	return lock.NewRedisLocker(rdb, "showtime:lock", cfg.LockTTL)
}
