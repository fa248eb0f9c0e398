package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/repository"
	"github.com/noah-isme/campus-print-api/internal/service"
	"github.com/noah-isme/campus-print-api/pkg/config"
	"github.com/noah-isme/campus-print-api/pkg/database"
	"github.com/noah-isme/campus-print-api/pkg/logger"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

// Runs a single retention sweep and exits.
func main() {
	var (
		retention   time.Duration
		orphanGrace time.Duration
		batchSize   int
		timeout     time.Duration
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	flag.DurationVar(&retention, "retention", cfg.Cleanup.Retention, "Age after which orders and files are removed")
	flag.DurationVar(&orphanGrace, "orphan-grace", cfg.Cleanup.OrphanGrace, "Minimum age of unreferenced files before removal")
	flag.IntVar(&batchSize, "batch", cfg.Cleanup.BatchSize, "Orders loaded per batch")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Upper bound for the sweep")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	store, err := storage.New(cfg.Storage, cfg.Supabase)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err))
	}

	cleanup := service.NewCleanupService(repository.NewOrderRepository(db), store, nil, logr, service.CleanupConfig{
		Retention:   retention,
		OrphanGrace: orphanGrace,
		BatchSize:   batchSize,
	})

	result, err := cleanup.Sweep(ctx)
	if err != nil {
		logr.Fatal("sweep failed", zap.Error(err))
	}
	logr.Info("sweep finished",
		zap.Int("orders_deleted", result.OrdersDeleted),
		zap.Int("files_deleted", result.FilesDeleted),
		zap.Int("orphans_deleted", result.OrphansDeleted),
		zap.Int("failures", result.Failures),
	)
}
