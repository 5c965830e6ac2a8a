package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/stars-api/api/swagger"
	"github.com/noah-isme/stars-api/internal/handler"
	"github.com/noah-isme/stars-api/internal/middleware"
	"github.com/noah-isme/stars-api/internal/repository"
	"github.com/noah-isme/stars-api/internal/service"
	"github.com/noah-isme/stars-api/pkg/cache"
	"github.com/noah-isme/stars-api/pkg/config"
	"github.com/noah-isme/stars-api/pkg/database"
	"github.com/noah-isme/stars-api/pkg/export"
	"github.com/noah-isme/stars-api/pkg/jobs"
	"github.com/noah-isme/stars-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/stars-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/stars-api/pkg/middleware/requestid"
	"github.com/noah-isme/stars-api/pkg/notify"
	"github.com/noah-isme/stars-api/pkg/telemetry"
)

// @title STARS Registration API
// @version 1.0.0
// @description Course registration: enrollment, waitlists, index changes and swaps.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, "stars-api", cfg.Env)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}

	stores, db, err := openStores(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to open record store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if db != nil {
		defer db.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"store": stores.Ping}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	notifications := service.NewNotificationService(stores.Subscriptions, stores.Notifications, buildSenders(cfg, stores, logr), metrics, logr)
	queue := jobs.NewQueue("notifications", notifications.HandleDelivery, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
		OnGiveUp:   notifications.OnGiveUp,
	})
	queue.Start(ctx)
	notifications.UseQueue(queue)

	validate := validator.New()
	locks := service.NewLockManager()
	ledger := service.NewCapacityLedger(stores.Sections, cacheSvc, logr)
	engine := service.NewEnrollmentService(stores.Students, stores.Sections, stores.Lessons, ledger, notifications, service.EnrollmentOptions{
		AULimit:   cfg.Enrollment.AULimit,
		Locks:     locks,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	catalog := service.NewCatalogService(stores.Courses, stores.Sections, stores.Students, stores.Lessons, stores.Subscriptions, ledger, cacheSvc, locks, validate, logr)
	exports := service.NewExportService(catalog, export.NewCSVExporter(export.WithBOM()), export.NewPDFExporter(), logr)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(telemetry.GinMiddleware())
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(tokens), handler.Handlers{
		Enrollment: handler.NewEnrollmentHandler(engine, notifications),
		Catalog:    handler.NewCatalogHandler(catalog, exports),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Database.Driver, "au_limit", engine.AULimit())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	queue.Stop()
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logr.Warn("tracing shutdown", zap.Error(err))
		}
	}
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (repository.Stores, *sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		return repository.NewMemoryStores(), nil, nil
	case config.DriverSQLite:
		db, err = database.NewSQLite(cfg)
	default:
		db, err = database.NewPostgres(cfg)
	}
	if err != nil {
		return repository.Stores{}, nil, err
	}

	migrations, root, err := repository.Migrations(cfg.Driver)
	if err != nil {
		_ = db.Close()
		return repository.Stores{}, nil, err
	}
	if err := database.ApplyMigrations(ctx, db, migrations, root); err != nil {
		_ = db.Close()
		return repository.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return repository.NewSQLStores(db), db, nil
}

func buildSenders(cfg *config.Config, stores repository.Stores, logr *zap.Logger) []notify.Sender {
	var senders []notify.Sender
	for _, channel := range cfg.Notify.Channels {
		switch channel {
		case "inbox":
			senders = append(senders, service.NewInboxSender(stores.Notifications))
		case "email":
			email, err := notify.NewEmailSender(cfg.SMTP)
			if err != nil {
				logr.Warn("email channel disabled", zap.Error(err))
				continue
			}
			senders = append(senders, email)
		case "log":
			senders = append(senders, notify.NewLogSender(logr))
		default:
			logr.Warn("unknown notification channel", zap.String("channel", channel))
		}
	}
	return senders
}
