package dto

import (
	"time"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// SubmitOrderRequest carries the print selections sent with the upload.
type SubmitOrderRequest struct {
	SubmitterType models.SubmitterType `json:"submitter_type" validate:"omitempty,oneof=student faculty"`
	SubmitterID   string               `json:"submitter_id" validate:"required,max=100"`
	Pages         []int                `json:"pages" validate:"required,min=1,max=5000,unique,dive,gte=0"`
	Copies        int                  `json:"copies" validate:"required,min=1,max=100"`
	Color         bool                 `json:"color"`
	DoubleSided   bool                 `json:"double_sided"`
	PaperSize     string               `json:"paper_size" validate:"required,oneof=A4 A3 Letter Legal"`
	Binding       string               `json:"binding" validate:"required,oneof=none staple spiral thermal"`
	Notes         string               `json:"notes" validate:"max=1000"`
}

// PricingView is the price breakdown returned to clients.
type PricingView struct {
	BWPages    int     `json:"bw_pages"`
	ColorPages int     `json:"color_pages"`
	TotalPages int     `json:"total_pages"`
	Subtotal   float64 `json:"subtotal"`
	Total      float64 `json:"total"`
}

// QuoteRequest asks for a price without creating an order.
type QuoteRequest struct {
	PageCount int  `json:"page_count" validate:"gte=0,lte=5000"`
	Copies    int  `json:"copies" validate:"required,min=1,max=100"`
	Color     bool `json:"color"`
}

// SubmitOrderResponse is returned after a successful submission.
type SubmitOrderResponse struct {
	ID             int64              `json:"id"`
	TrackingToken  string             `json:"tracking_token"`
	Status         models.OrderStatus `json:"status"`
	Pricing        PricingView        `json:"pricing"`
	CancelDeadline time.Time          `json:"cancel_deadline"`
	ReceiptURL     string             `json:"receipt_url"`
}

// CancelOrderResponse confirms a cancellation.
type CancelOrderResponse struct {
	TrackingToken string    `json:"tracking_token"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// UpdateStatusRequest is the admin status change payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderView is the public representation of an order.
type OrderView struct {
	ID                  int64                `json:"id"`
	TrackingToken       string               `json:"tracking_token"`
	SubmitterType       models.SubmitterType `json:"submitter_type"`
	SubmitterID         string               `json:"submitter_id"`
	OriginalFilename    string               `json:"original_filename"`
	FileSize            int64                `json:"file_size"`
	MimeType            string               `json:"mime_type"`
	TotalPages          int                  `json:"total_pages"`
	ColorPages          int                  `json:"color_pages"`
	BWPages             int                  `json:"bw_pages"`
	PrintOptions        models.PrintOptions  `json:"print_options"`
	TotalPrice          float64              `json:"total_price"`
	Notes               string               `json:"notes,omitempty"`
	Status              models.OrderStatus   `json:"status"`
	PaymentStatus       models.PaymentState  `json:"payment_status"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	CancellableUntil    *time.Time           `json:"cancellable_until,omitempty"`
	EstimatedCompletion *time.Time           `json:"estimated_completion,omitempty"`
	DownloadURL         string               `json:"download_url,omitempty"`
	ReceiptURL          string               `json:"receipt_url,omitempty"`
	Payment             *models.Payment      `json:"payment,omitempty"`
}

// HistoryEvent is one entry of an order timeline.
type HistoryEvent struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"label"`
	At     time.Time          `json:"at"`
}

// TrackingHistory lists the known status changes of an order.
type TrackingHistory struct {
	TrackingToken string             `json:"tracking_token"`
	Status        models.OrderStatus `json:"status"`
	Events        []HistoryEvent     `json:"events"`
}

// DownloadLink is a time-limited link to a stored file.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
