package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/export"
)

type trackingOrderReader interface {
	FindByToken(ctx context.Context, token string) (*models.Order, error)
	FindLatestBySubmitter(ctx context.Context, submitterID string) (*models.Order, error)
}

type paymentReader interface {
	LatestForOrder(ctx context.Context, orderID int64) (*models.Payment, error)
}

type receiptRenderer interface {
	RenderReceipt(r export.Receipt) ([]byte, error)
}

// TrackingService answers read-only order lookups for submitters.
type TrackingService struct {
	orders    trackingOrderReader
	payments  paymentReader
	presenter *OrderPresenter
	renderer  receiptRenderer
	logger    *zap.Logger
}

// NewTrackingService constructs a TrackingService.
func NewTrackingService(orders trackingOrderReader, payments paymentReader, presenter *OrderPresenter, renderer receiptRenderer, logger *zap.Logger) *TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	if presenter == nil {
		presenter = NewOrderPresenter(nil, logger, OrderPresenterConfig{})
	}
	return &TrackingService{orders: orders, payments: payments, presenter: presenter, renderer: renderer, logger: logger}
}

// TrackByToken returns the order carrying the token with its latest payment.
func (s *TrackingService) TrackByToken(ctx context.Context, token string) (*dto.OrderView, error) {
	order, err := s.loadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, order)
}

// TrackBySubmitter returns the most recent order of a roll number or department.
func (s *TrackingService) TrackBySubmitter(ctx context.Context, submitterID string) (*dto.OrderView, error) {
	submitterID = strings.TrimSpace(submitterID)
	if submitterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submitter id is required")
	}
	order, err := s.orders.FindLatestBySubmitter(ctx, submitterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no orders found for submitter")
		}
		return nil, appErrors.Internal(err, "failed to load order")
	}
	return s.view(ctx, order)
}

// History returns the order timeline: creation plus the current status once
// it has moved past pending.
func (s *TrackingService) History(ctx context.Context, token string) (*dto.TrackingHistory, error) {
	order, err := s.loadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	events := []dto.HistoryEvent{{Status: models.OrderStatusPending, Label: "created", At: order.CreatedAt}}
	if order.Status != models.OrderStatusPending {
		events = append(events, dto.HistoryEvent{Status: order.Status, Label: string(order.Status), At: order.UpdatedAt})
	}
	return &dto.TrackingHistory{TrackingToken: order.TrackingToken, Status: order.Status, Events: events}, nil
}

// Receipt renders a one page PDF receipt for the order.
func (s *TrackingService) Receipt(ctx context.Context, token string) ([]byte, error) {
	order, err := s.loadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	payment, err := s.latestPayment(ctx, order)
	if err != nil {
		return nil, err
	}

	color := "Black & white"
	if order.Options.Color {
		color = "Color"
	}
	sides := "Single-sided"
	if order.Options.DoubleSided {
		sides = "Double-sided"
	}
	fields := []export.Field{
		{Label: "Tracking token", Value: order.TrackingToken},
		{Label: "Submitted by", Value: fmt.Sprintf("%s (%s)", order.SubmitterID, order.SubmitterType)},
		{Label: "Document", Value: order.OriginalFilename},
		{Label: "Submitted at", Value: order.CreatedAt.UTC().Format(time.RFC1123)},
		{Label: "Pages", Value: fmt.Sprintf("%d x %d copies", order.TotalPages, order.Options.Copies)},
		{Label: "Options", Value: fmt.Sprintf("%s, %s, %s, binding %s", color, sides, order.Options.PaperSize, order.Options.Binding)},
		{Label: "B/W pages", Value: fmt.Sprintf("%d", order.BWPages)},
		{Label: "Color pages", Value: fmt.Sprintf("%d", order.ColorPages)},
		{Label: "Total", Value: fmt.Sprintf("%.2f", order.TotalPrice)},
		{Label: "Status", Value: string(order.Status)},
		{Label: "Payment", Value: string(order.PaymentStatus)},
	}
	if payment != nil {
		fields = append(fields,
			export.Field{Label: "Paid via", Value: payment.Method},
			export.Field{Label: "Paid at", Value: payment.CreatedAt.UTC().Format(time.RFC1123)},
		)
	}

	body, err := s.renderer.RenderReceipt(export.Receipt{
		Title:    "Print Order Receipt",
		Subtitle: order.TrackingToken,
		Fields:   fields,
		Footer:   "Keep this token to track or collect your order.",
	})
	if err != nil {
		s.logger.Error("failed to render receipt", zap.String("token", order.TrackingToken), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render receipt")
	}
	return body, nil
}

// Payment returns the latest payment recorded for the order.
func (s *TrackingService) Payment(ctx context.Context, token string) (*models.Payment, error) {
	order, err := s.loadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	payment, err := s.latestPayment(ctx, order)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no payment recorded for order")
	}
	return payment, nil
}

func (s *TrackingService) loadByToken(ctx context.Context, token string) (*models.Order, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking token is required")
	}
	order, err := s.orders.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Internal(err, "failed to load order")
	}
	return order, nil
}

func (s *TrackingService) latestPayment(ctx context.Context, order *models.Order) (*models.Payment, error) {
	payment, err := s.payments.LatestForOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load payment")
	}
	return payment, nil
}

func (s *TrackingService) view(ctx context.Context, order *models.Order) (*dto.OrderView, error) {
	payment, err := s.latestPayment(ctx, order)
	if err != nil {
		return nil, err
	}
	view := s.presenter.View(order, payment)
	return &view, nil
}
