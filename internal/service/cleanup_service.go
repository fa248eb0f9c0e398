package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

// Cleanup defaults.
const (
	DefaultRetention   = 7 * 24 * time.Hour
	DefaultOrphanGrace = 24 * time.Hour
	DefaultSweepBatch  = 500
)

type sweepRepository interface {
	FindSweepable(ctx context.Context, criteria models.SweepCriteria) ([]models.Order, error)
	DeleteSweepable(ctx context.Context, id int64, criteria models.SweepCriteria) (string, error)
	StoredFilenamesIn(ctx context.Context, keys []string) (map[string]struct{}, error)
}

type sweepMetrics interface {
	SweepDeleted(kind string, n int)
	SweepFailures(n int)
}

// CleanupConfig tunes the retention sweep.
type CleanupConfig struct {
	Retention   time.Duration
	OrphanGrace time.Duration
	BatchSize   int
}

// CleanupService removes stale orders and their files. A sweep only deletes
// what is already eligible, so running it twice in a row is harmless.
type CleanupService struct {
	repo    sweepRepository
	store   storage.Backend
	metrics sweepMetrics
	logger  *zap.Logger
	config  CleanupConfig
	now     func() time.Time
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(repo sweepRepository, store storage.Backend, metrics sweepMetrics, logger *zap.Logger, cfg CleanupConfig) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = DefaultOrphanGrace
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatch
	}
	return &CleanupService{repo: repo, store: store, metrics: metrics, logger: logger, config: cfg, now: time.Now}
}

// Sweep deletes terminal orders past retention, unpaid orders past expiry and
// stored files no order references.
func (s *CleanupService) Sweep(ctx context.Context) (*dto.CleanupResult, error) {
	started := s.now().UTC()
	result := &dto.CleanupResult{StartedAt: started}

	criteria := models.SweepCriteria{
		TerminalBefore: started.Add(-s.config.Retention),
		ExpiredBefore:  started,
		Limit:          s.config.BatchSize,
	}
	for {
		batch, err := s.repo.FindSweepable(ctx, criteria)
		if err != nil {
			return nil, fmt.Errorf("load sweepable orders: %w", err)
		}
		for i := range batch {
			criteria.AfterID = batch[i].ID
			result.Scanned++
			s.sweepOrder(ctx, batch[i].ID, criteria, result)
		}
		if len(batch) < criteria.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if err := s.sweepOrphans(ctx, started, result); err != nil {
		s.logger.Warn("orphan reconciliation skipped", zap.Error(err))
		result.Failures++
	}

	result.FinishedAt = s.now().UTC()
	s.metrics.SweepDeleted("order", result.OrdersDeleted)
	s.metrics.SweepDeleted("file", result.FilesDeleted)
	s.metrics.SweepDeleted("orphan", result.OrphansDeleted)
	s.metrics.SweepFailures(result.Failures)

	s.logger.Info("cleanup sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("orders_deleted", result.OrdersDeleted),
		zap.Int("files_deleted", result.FilesDeleted),
		zap.Int("orphans_deleted", result.OrphansDeleted),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", result.FinishedAt.Sub(started)),
	)
	return result, nil
}

// sweepOrder deletes the row only if it is still eligible, then its file. A
// file left behind by a failed delete is picked up as an orphan later.
func (s *CleanupService) sweepOrder(ctx context.Context, id int64, criteria models.SweepCriteria, result *dto.CleanupResult) {
	stored, err := s.repo.DeleteSweepable(ctx, id, criteria)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("order no longer sweepable", zap.Int64("order_id", id))
			return
		}
		s.logger.Warn("failed to delete order", zap.Int64("order_id", id), zap.Error(err))
		result.Failures++
		return
	}
	result.OrdersDeleted++

	if stored == "" {
		return
	}
	err = s.store.Delete(ctx, stored)
	switch {
	case err == nil:
		result.FilesDeleted++
	case errors.Is(err, storage.ErrObjectNotFound):
	default:
		s.logger.Warn("failed to delete order file",
			zap.Int64("order_id", id),
			zap.String("key", stored),
			zap.Error(err),
		)
		result.Failures++
	}
}

func (s *CleanupService) sweepOrphans(ctx context.Context, started time.Time, result *dto.CleanupResult) error {
	objects, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored files: %w", err)
	}

	cutoff := started.Add(-s.config.OrphanGrace)
	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.ModifiedAt.IsZero() || obj.ModifiedAt.After(cutoff) {
			continue
		}
		candidates = append(candidates, obj.Key)
	}
	if len(candidates) == 0 {
		return nil
	}

	referenced, err := s.repo.StoredFilenamesIn(ctx, candidates)
	if err != nil {
		return fmt.Errorf("check referenced files: %w", err)
	}
	for _, key := range candidates {
		if _, ok := referenced[key]; ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to delete orphan file", zap.String("key", key), zap.Error(err))
			result.Failures++
			continue
		}
		result.OrphansDeleted++
	}
	return nil
}

// HandleSweep runs a sweep for a queued cleanup.sweep job.
func (s *CleanupService) HandleSweep(ctx context.Context, job jobs.Job) error {
	_, err := s.Sweep(ctx)
	return err
}

// HandleFileDelete retries a file removal queued after a failed rollback.
func (s *CleanupService) HandleFileDelete(ctx context.Context, job jobs.Job) error {
	key, ok := job.Payload.(string)
	if !ok || key == "" {
		s.logger.Warn("dropping file delete job without key", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.metrics.SweepDeleted("file", 1)
	return nil
}

// StartScheduler queues a cleanup.sweep job every day at the given time until
// ctx is cancelled.
func (s *CleanupService) StartScheduler(ctx context.Context, queue *jobs.Queue, at jobs.DailyAt) {
	go jobs.RunDaily(ctx, queue, at, jobs.TypeCleanupSweep, s.logger)
}

// Register wires the cleanup job handlers into a router.
func (s *CleanupService) Register(router *jobs.Router) {
	router.Handle(jobs.TypeCleanupSweep, s.HandleSweep)
	router.Handle(jobs.TypeFileDelete, s.HandleFileDelete)
}
