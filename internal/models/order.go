package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus captures the print job lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether the status belongs to the known set.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PaymentState tracks whether an order has been settled.
type PaymentState string

const (
	PaymentStateUnpaid PaymentState = "unpaid"
	PaymentStatePaid   PaymentState = "paid"
)

// SubmitterType distinguishes student and faculty submissions.
type SubmitterType string

const (
	SubmitterStudent SubmitterType = "student"
	SubmitterFaculty SubmitterType = "faculty"
)

// Paper sizes accepted by the shop.
const (
	PaperA4     = "A4"
	PaperA3     = "A3"
	PaperLetter = "Letter"
	PaperLegal  = "Legal"
)

// Binding types accepted by the shop.
const (
	BindingNone    = "none"
	BindingStaple  = "staple"
	BindingSpiral  = "spiral"
	BindingThermal = "thermal"
)

// Order is the canonical print job record.
type Order struct {
	ID               int64         `db:"id" json:"id"`
	TrackingToken    string        `db:"tracking_token" json:"tracking_token"`
	SubmitterType    SubmitterType `db:"submitter_type" json:"submitter_type"`
	SubmitterID      string        `db:"submitter_id" json:"submitter_id"`
	OriginalFilename string        `db:"original_filename" json:"original_filename"`
	StoredFilename   string        `db:"stored_filename" json:"-"`
	FileSize         int64         `db:"file_size" json:"file_size"`
	MimeType         string        `db:"mime_type" json:"mime_type"`
	TotalPages       int           `db:"total_pages" json:"total_pages"`
	ColorPages       int           `db:"color_pages" json:"color_pages"`
	BWPages          int           `db:"bw_pages" json:"bw_pages"`
	Options          PrintOptions  `db:"print_options" json:"print_options"`
	TotalPrice       float64       `db:"total_price" json:"total_price"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	Status           OrderStatus   `db:"status" json:"status"`
	PaymentStatus    PaymentState  `db:"payment_status" json:"payment_status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	ExpiresAt        *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
}

// PrintOptions stores the print selections persisted as JSONB.
type PrintOptions struct {
	Color       bool   `json:"color"`
	DoubleSided bool   `json:"double_sided"`
	Copies      int    `json:"copies"`
	PaperSize   string `json:"paper_size"`
	Binding     string `json:"binding"`
	Pages       []int  `json:"pages"`
}

// Value marshals options to JSON for persistence.
func (p PrintOptions) Value() (driver.Value, error) {
	if p.Pages == nil {
		p.Pages = []int{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal print options: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the options struct.
func (p *PrintOptions) Scan(value interface{}) error {
	if value == nil {
		*p = PrintOptions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PrintOptions", value)
	}
	if len(data) == 0 {
		*p = PrintOptions{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal print options: %w", err)
	}
	return nil
}

// OrderFilter narrows admin listing queries.
type OrderFilter struct {
	Status      OrderStatus
	SubmitterID string
	Page        int
	PageSize    int
}

// SweepCriteria selects orders eligible for the cleanup sweep.
type SweepCriteria struct {
	TerminalBefore time.Time
	ExpiredBefore  time.Time
	// AfterID pages through eligible rows in id order.
	AfterID int64
	Limit   int
}
