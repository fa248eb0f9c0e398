package service

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

// Defaults for the order lifecycle timings.
const (
	DefaultCancelWindow        = 30 * time.Second
	DefaultEstimatedTurnaround = 30 * time.Minute
	DefaultUnpaidTTL           = 12 * time.Hour
)

// OrderPresenterConfig controls the links and timings shown on order views.
type OrderPresenterConfig struct {
	BasePath            string
	CancelWindow        time.Duration
	EstimatedTurnaround time.Duration
}

// OrderPresenter turns stored orders into public views.
type OrderPresenter struct {
	signer *storage.SignedURLSigner
	logger *zap.Logger
	config OrderPresenterConfig
	now    func() time.Time
}

// NewOrderPresenter builds a presenter. A nil signer omits download links.
func NewOrderPresenter(signer *storage.SignedURLSigner, logger *zap.Logger, cfg OrderPresenterConfig) *OrderPresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = DefaultCancelWindow
	}
	if cfg.EstimatedTurnaround <= 0 {
		cfg.EstimatedTurnaround = DefaultEstimatedTurnaround
	}
	return &OrderPresenter{signer: signer, logger: logger, config: cfg, now: time.Now}
}

// View renders an order together with its latest payment, if any.
func (p *OrderPresenter) View(order *models.Order, payment *models.Payment) dto.OrderView {
	view := dto.OrderView{
		ID:               order.ID,
		TrackingToken:    order.TrackingToken,
		SubmitterType:    order.SubmitterType,
		SubmitterID:      order.SubmitterID,
		OriginalFilename: order.OriginalFilename,
		FileSize:         order.FileSize,
		MimeType:         order.MimeType,
		TotalPages:       order.TotalPages,
		ColorPages:       order.ColorPages,
		BWPages:          order.BWPages,
		PrintOptions:     order.Options,
		TotalPrice:       order.TotalPrice,
		Notes:            order.Notes,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
		ReceiptURL:       p.ReceiptURL(order.TrackingToken),
		Payment:          payment,
	}

	if order.Status == models.OrderStatusPending {
		deadline := p.CancelDeadline(order)
		if !p.now().After(deadline) {
			view.CancellableUntil = &deadline
		}
	}
	if order.Status == models.OrderStatusProcessing {
		eta := order.CreatedAt.Add(p.config.EstimatedTurnaround)
		view.EstimatedCompletion = &eta
	}
	if link, err := p.DownloadLink(order); err == nil && link != nil {
		view.DownloadURL = link.URL
	}
	return view
}

// Views renders a list of orders without payments.
func (p *OrderPresenter) Views(orders []models.Order) []dto.OrderView {
	views := make([]dto.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, p.View(&orders[i], nil))
	}
	return views
}

// CancelDeadline is the last instant a pending order may be cancelled.
func (p *OrderPresenter) CancelDeadline(order *models.Order) time.Time {
	return order.CreatedAt.Add(p.config.CancelWindow)
}

// ReceiptURL is the path of the generated receipt.
func (p *OrderPresenter) ReceiptURL(token string) string {
	return p.config.BasePath + "/orders/" + url.PathEscape(token) + "/receipt"
}

// DownloadLink signs a time-limited link to the order's stored file.
func (p *OrderPresenter) DownloadLink(order *models.Order) (*dto.DownloadLink, error) {
	if p.signer == nil || order.StoredFilename == "" {
		return nil, nil
	}
	token, expiresAt, err := p.signer.Generate(order.TrackingToken, order.StoredFilename)
	if err != nil {
		p.logger.Warn("failed to sign download link", zap.Int64("order_id", order.ID), zap.Error(err))
		return nil, err
	}
	return &dto.DownloadLink{
		URL:       p.config.BasePath + "/files/download?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}
