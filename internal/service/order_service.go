package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/repository"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
)

const tokenAttempts = 3

type orderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	Transition(ctx context.Context, id int64, decide func(current *models.Order) (models.OrderStatus, error), now time.Time) (*models.Order, error)
	DeleteIf(ctx context.Context, token string, check func(current *models.Order) error) (*models.Order, error)
}

type fileIntake interface {
	AcceptUpload(ctx context.Context, upload Upload) (*StoredFile, error)
	Discard(ctx context.Context, key string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type orderMetrics interface {
	OrderCreated(submitterType string)
	OrderCancelled(submitterType string)
	StatusTransition(from, to string)
}

// CancelContext identifies who asks for a cancellation. An empty SubmitterID
// skips the ownership check.
type CancelContext struct {
	SubmitterID string
}

// AdminContext identifies the admin performing a status change.
type AdminContext struct {
	UserID string
	Role   models.UserRole
}

// OrderConfig tunes the order lifecycle.
type OrderConfig struct {
	CancelWindow time.Duration
	UnpaidTTL    time.Duration
	Transitions  TransitionPolicy
	Prices       PriceSchedule
}

// OrderService drives submission, cancellation and status changes.
type OrderService struct {
	repo      orderRepository
	intake    fileIntake
	presenter *OrderPresenter
	retries   jobEnqueuer
	metrics   orderMetrics
	validator *validator.Validate
	logger    *zap.Logger
	config    OrderConfig
	now       func() time.Time
	newToken  func() string
}

// NewOrderService constructs an OrderService. retries and metrics may be nil.
func NewOrderService(repo orderRepository, intake fileIntake, presenter *OrderPresenter, retries jobEnqueuer, metrics orderMetrics, validate *validator.Validate, logger *zap.Logger, cfg OrderConfig) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = DefaultCancelWindow
	}
	if cfg.UnpaidTTL <= 0 {
		cfg.UnpaidTTL = DefaultUnpaidTTL
	}
	if cfg.Transitions.allowed == nil && !cfg.Transitions.permissive {
		cfg.Transitions = DefaultTransitionPolicy()
	}
	if cfg.Prices.BWRate <= 0 || cfg.Prices.ColorRate <= 0 {
		cfg.Prices = NewPriceSchedule(cfg.Prices.BWRate, cfg.Prices.ColorRate)
	}
	if presenter == nil {
		presenter = NewOrderPresenter(nil, logger, OrderPresenterConfig{CancelWindow: cfg.CancelWindow})
	}
	return &OrderService{
		repo:      repo,
		intake:    intake,
		presenter: presenter,
		retries:   retries,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
		newToken:  NewTrackingToken,
	}
}

// NewTrackingToken returns "TRK-" followed by the 32 hex digits of a random UUID.
func NewTrackingToken() string {
	return "TRK-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Submit validates, prices, stores and persists a new order. Nothing is
// persisted when validation, pricing or storage fails, and the stored file is
// discarded when persistence fails.
func (s *OrderService) Submit(ctx context.Context, req dto.SubmitOrderRequest, upload Upload) (*dto.SubmitOrderResponse, error) {
	req.SubmitterID = strings.TrimSpace(req.SubmitterID)
	if req.SubmitterType == "" {
		req.SubmitterType = models.SubmitterStudent
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}

	pricing := s.config.Prices.Compute(len(req.Pages), req.Copies, req.Color)

	stored, err := s.intake.AcceptUpload(ctx, upload)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.config.UnpaidTTL)
	order := &models.Order{
		SubmitterType:    req.SubmitterType,
		SubmitterID:      req.SubmitterID,
		OriginalFilename: stored.OriginalName,
		StoredFilename:   stored.Key,
		FileSize:         stored.Size,
		MimeType:         stored.MimeType,
		TotalPages:       len(req.Pages),
		ColorPages:       pricing.ColorPages,
		BWPages:          pricing.BWPages,
		Options: models.PrintOptions{
			Color:       req.Color,
			DoubleSided: req.DoubleSided,
			Copies:      req.Copies,
			PaperSize:   req.PaperSize,
			Binding:     req.Binding,
			Pages:       req.Pages,
		},
		TotalPrice:    pricing.Total,
		Notes:         strings.TrimSpace(req.Notes),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStateUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     &expiresAt,
	}

	if err := s.persist(ctx, order); err != nil {
		s.rollbackFile(ctx, stored.Key)
		s.logger.Error("failed to persist order", zap.String("key", stored.Key), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create order")
	}

	s.metrics.OrderCreated(string(order.SubmitterType))
	s.logger.Info("order submitted",
		zap.Int64("order_id", order.ID),
		zap.String("token", order.TrackingToken),
		zap.String("submitter_type", string(order.SubmitterType)),
		zap.Float64("total", order.TotalPrice),
	)

	return &dto.SubmitOrderResponse{
		ID:             order.ID,
		TrackingToken:  order.TrackingToken,
		Status:         order.Status,
		Pricing:        pricing.View(),
		CancelDeadline: s.presenter.CancelDeadline(order),
		ReceiptURL:     s.presenter.ReceiptURL(order.TrackingToken),
	}, nil
}

func (s *OrderService) persist(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		order.TrackingToken = s.newToken()
		err = s.repo.Create(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return err
		}
		s.logger.Warn("tracking token collision, regenerating", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("allocate tracking token: %w", err)
}

// Cancel deletes an unpaid pending order within the cancellation window and
// then removes its file. An order owned by another submitter is reported as missing.
func (s *OrderService) Cancel(ctx context.Context, token string, cc CancelContext) (*dto.CancelOrderResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking token is required")
	}
	now := s.now()

	deleted, err := s.repo.DeleteIf(ctx, token, func(current *models.Order) error {
		if cc.SubmitterID != "" && current.SubmitterID != cc.SubmitterID {
			return appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		if current.Status != models.OrderStatusPending {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("order is %s and can no longer be cancelled", current.Status))
		}
		if current.PaymentStatus == models.PaymentStatePaid {
			return appErrors.Clone(appErrors.ErrInvalidState, "paid orders cannot be cancelled")
		}
		if now.Sub(current.CreatedAt) > s.config.CancelWindow {
			return appErrors.Clone(appErrors.ErrCancelWindowExpired, fmt.Sprintf("orders can only be cancelled within %s of submission", s.config.CancelWindow))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Internal(err, "failed to cancel order")
	}

	s.rollbackFile(ctx, deleted.StoredFilename)
	s.metrics.OrderCancelled(string(deleted.SubmitterType))
	s.logger.Info("order cancelled", zap.Int64("order_id", deleted.ID), zap.String("token", deleted.TrackingToken))

	return &dto.CancelOrderResponse{TrackingToken: deleted.TrackingToken, CancelledAt: now.UTC()}, nil
}

// AdvanceStatus moves an order to a new status on behalf of an admin.
func (s *OrderService) AdvanceStatus(ctx context.Context, id int64, newStatus string, admin AdminContext) (*dto.OrderView, error) {
	if admin.Role != models.RoleAdmin && admin.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	target := models.OrderStatus(strings.ToLower(strings.TrimSpace(newStatus)))
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("status %q is not one of pending, processing, completed, cancelled", newStatus))
	}

	var from models.OrderStatus
	updated, err := s.repo.Transition(ctx, id, func(current *models.Order) (models.OrderStatus, error) {
		from = current.Status
		if !s.config.Transitions.Allows(current.Status, target) {
			return "", appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", current.Status, target))
		}
		return target, nil
	}, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Internal(err, "failed to update order status")
	}

	if from == target {
		view := s.presenter.View(updated, nil)
		return &view, nil
	}
	s.metrics.StatusTransition(string(from), string(target))
	s.logger.Info("order status updated",
		zap.Int64("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("admin_id", admin.UserID),
	)
	view := s.presenter.View(updated, nil)
	return &view, nil
}

// rollbackFile deletes a stored file, queueing a retry when the backend fails.
func (s *OrderService) rollbackFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	err := s.intake.Discard(ctx, key)
	if err == nil {
		return
	}
	s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	if s.retries == nil {
		return
	}
	if qErr := s.retries.Enqueue(jobs.Job{Type: jobs.TypeFileDelete, Payload: key}); qErr != nil {
		s.logger.Error("failed to queue file deletion", zap.String("key", key), zap.Error(qErr))
	}
}
