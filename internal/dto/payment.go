package dto

// ProcessPaymentRequest records a settlement for an order.
type ProcessPaymentRequest struct {
	TrackingToken string   `json:"-" validate:"required"`
	Amount        *float64 `json:"amount" validate:"required,gte=0"`
	Method        string   `json:"method" validate:"required,oneof=cash card upi bank_transfer"`
	PayerName     string   `json:"payer_name" validate:"required,max=150"`
	PayerEmail    string   `json:"payer_email" validate:"required,email"`
	TransactionID string   `json:"transaction_id" validate:"max=100"`
}
