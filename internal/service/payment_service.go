package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
)

type paymentRepository interface {
	Record(ctx context.Context, token string, build func(order *models.Order) (*models.Payment, error)) (*models.Payment, error)
}

type paymentMetrics interface {
	PaymentRecorded(method string)
}

// PaymentService records settlements against orders. The server side order
// total is the only accepted amount.
type PaymentService struct {
	repo      paymentRepository
	metrics   paymentMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, metrics paymentMetrics, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	return &PaymentService{repo: repo, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Process records a completed payment and marks the order paid.
func (s *PaymentService) Process(ctx context.Context, req dto.ProcessPaymentRequest) (*models.Payment, error) {
	req.TrackingToken = strings.TrimSpace(req.TrackingToken)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	amount := *req.Amount

	payment, err := s.repo.Record(ctx, req.TrackingToken, func(order *models.Order) (*models.Payment, error) {
		if order.Status == models.OrderStatusCancelled {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "cancelled orders cannot be paid")
		}
		if order.PaymentStatus == models.PaymentStatePaid {
			return nil, appErrors.Clone(appErrors.ErrConflict, "order is already paid")
		}
		if toCents(amount) != toCents(order.TotalPrice) {
			return nil, appErrors.Clone(appErrors.ErrAmountMismatch, fmt.Sprintf("amount must equal the order total of %.2f", order.TotalPrice))
		}
		var txID *string
		if id := strings.TrimSpace(req.TransactionID); id != "" {
			txID = &id
		}
		return &models.Payment{
			Amount:        order.TotalPrice,
			Method:        req.Method,
			PayerName:     strings.TrimSpace(req.PayerName),
			PayerEmail:    strings.TrimSpace(req.PayerEmail),
			TransactionID: txID,
			Status:        models.PaymentStatusCompleted,
			CreatedAt:     s.now().UTC(),
		}, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error("failed to record payment", zap.String("token", req.TrackingToken), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to record payment")
	}

	s.metrics.PaymentRecorded(payment.Method)
	s.logger.Info("payment recorded",
		zap.String("token", req.TrackingToken),
		zap.Int64("payment_id", payment.ID),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}
