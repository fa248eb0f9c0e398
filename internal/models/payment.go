package models

import "time"

// PaymentStatus tracks a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment is a settlement recorded against an order.
type Payment struct {
	ID            int64         `db:"id" json:"id"`
	OrderID       int64         `db:"order_id" json:"order_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Method        string        `db:"method" json:"method"`
	PayerName     string        `db:"payer_name" json:"payer_name"`
	PayerEmail    string        `db:"payer_email" json:"payer_email"`
	TransactionID *string       `db:"transaction_id" json:"transaction_id,omitempty"`
	Status        PaymentStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// PaymentListItem joins a payment with its order token for admin listings.
type PaymentListItem struct {
	Payment
	TrackingToken string `db:"tracking_token" json:"tracking_token"`
}
