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
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-print-api/api/swagger"
	"github.com/noah-isme/campus-print-api/internal/handler"
	"github.com/noah-isme/campus-print-api/internal/repository"
	"github.com/noah-isme/campus-print-api/internal/service"
	"github.com/noah-isme/campus-print-api/pkg/cache"
	"github.com/noah-isme/campus-print-api/pkg/config"
	"github.com/noah-isme/campus-print-api/pkg/database"
	"github.com/noah-isme/campus-print-api/pkg/export"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
	"github.com/noah-isme/campus-print-api/pkg/logger"
	"github.com/noah-isme/campus-print-api/pkg/ratelimit"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Campus Print API
// @version 1.0.0
// @description Print order intake, tracking and administration for the campus print shop
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, logr)
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logr.Info("migrations applied", zap.Strings("files", applied))
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Driver == config.RateLimitRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	deps, err := wire(ctx, cfg, db, redisClient, logr)
	if err != nil {
		return err
	}
	defer deps.queue.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	registerRoutes(r, cfg, deps, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type dependencies struct {
	auth     *service.AuthService
	audit    *repository.AuditRepository
	metrics  *service.MetricsService
	queue    *jobs.Queue
	orders   *handler.OrderHandler
	tracking *handler.TrackingHandler
	payments *handler.PaymentHandler
	authH    *handler.AuthHandler
	admin    *handler.AdminHandler
	files    *handler.FileHandler
	metricsH *handler.MetricsHandler
}

func wire(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*dependencies, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	backend, err := storage.New(cfg.Storage, cfg.Supabase)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	store := service.NewInstrumentedStorage(backend, metrics)
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	var limiterClient redis.UniversalClient
	if redisClient != nil {
		limiterClient = redisClient
	}
	limiter, err := ratelimit.New(cfg.RateLimit, limiterClient)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	if mem, ok := limiter.(*ratelimit.Memory); ok {
		go mem.Run(ctx, cfg.RateLimit.SweepInterval)
	}

	transitions, err := service.ParseTransitionPolicy(cfg.Orders.Transitions)
	if err != nil {
		return nil, fmt.Errorf("parse order transitions: %w", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)

	cleanup := service.NewCleanupService(orderRepo, store, metrics, logr, service.CleanupConfig{
		Retention:   cfg.Cleanup.Retention,
		OrphanGrace: cfg.Cleanup.OrphanGrace,
		BatchSize:   cfg.Cleanup.BatchSize,
	})
	router := jobs.NewRouter()
	cleanup.Register(router)
	queue := jobs.NewQueue("maintenance", router.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.Retries,
		Logger:     logr,
	})
	queue.Start(ctx)

	if cfg.Cleanup.Enabled {
		at, err := jobs.ParseDailyAt(cfg.Cleanup.DailyAt, cfg.Cleanup.Timezone)
		if err != nil {
			queue.Stop()
			return nil, fmt.Errorf("parse cleanup schedule: %w", err)
		}
		cleanup.StartScheduler(ctx, queue, at)
	}

	prices := service.NewPriceSchedule(cfg.Pricing.BWRate, cfg.Pricing.ColorRate)
	presenter := service.NewOrderPresenter(signer, logr, service.OrderPresenterConfig{
		BasePath:            cfg.APIPrefix,
		CancelWindow:        cfg.Orders.CancelWindow,
		EstimatedTurnaround: cfg.Orders.EstimatedTurnaround,
	})
	intake := service.NewIntakeService(store, logr, service.IntakeConfig{
		MaxFileSizeBytes:  cfg.Upload.MaxFileSizeBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	})
	orderSvc := service.NewOrderService(orderRepo, intake, presenter, queue, metrics, validate, logr, service.OrderConfig{
		CancelWindow: cfg.Orders.CancelWindow,
		UnpaidTTL:    cfg.Orders.UnpaidTTL,
		Transitions:  transitions,
		Prices:       prices,
	})
	trackingSvc := service.NewTrackingService(orderRepo, paymentRepo, presenter, export.NewPDFExporter(), logr)
	paymentSvc := service.NewPaymentService(paymentRepo, metrics, validate, logr)
	adminSvc := service.NewAdminService(orderRepo, paymentRepo, analyticsRepo, presenter, queue, auditRepo, logr)
	authSvc := service.NewAuthService(adminRepo, facultyRepo, auditRepo, limiter, metrics, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	if _, err := authSvc.EnsureSuperAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		queue.Stop()
		return nil, fmt.Errorf("bootstrap superadmin: %w", err)
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	return &dependencies{
		auth:     authSvc,
		audit:    auditRepo,
		metrics:  metrics,
		queue:    queue,
		orders:   handler.NewOrderHandler(orderSvc, cfg.Upload.MaxFileSizeBytes),
		tracking: handler.NewTrackingHandler(trackingSvc),
		payments: handler.NewPaymentHandler(paymentSvc, prices),
		authH:    handler.NewAuthHandler(authSvc),
		admin:    handler.NewAdminHandler(adminSvc),
		files:    handler.NewFileHandler(signer, orderRepo, store, logr),
		metricsH: handler.NewMetricsHandler(metrics, checks),
	}, nil
}
