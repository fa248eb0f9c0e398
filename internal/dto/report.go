package dto

import (
	"time"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// RevenueQuery selects the revenue rollup.
type RevenueQuery struct {
	GroupBy models.RevenueGrouping
	From    *time.Time
	To      *time.Time
}

// RevenueReport is the revenue rollup with summary totals.
type RevenueReport struct {
	GroupBy      models.RevenueGrouping `json:"group_by"`
	From         *time.Time             `json:"from,omitempty"`
	To           *time.Time             `json:"to,omitempty"`
	Buckets      []models.RevenueBucket `json:"buckets"`
	TotalOrders  int                    `json:"total_orders"`
	TotalRevenue float64                `json:"total_revenue"`
}

// StatusReport lists order counts and values per status.
type StatusReport struct {
	Items       []models.StatusCount `json:"items"`
	TotalOrders int                  `json:"total_orders"`
	TotalValue  float64              `json:"total_value"`
}

// ExportFormat is the rendering of an exported report.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportedReport is a rendered report document.
type ExportedReport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// CleanupResult summarises one retention sweep.
type CleanupResult struct {
	Scanned        int       `json:"scanned"`
	OrdersDeleted  int       `json:"orders_deleted"`
	FilesDeleted   int       `json:"files_deleted"`
	OrphansDeleted int       `json:"orphans_deleted"`
	Failures       int       `json:"failures"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// CleanupAccepted is returned when a sweep is queued.
type CleanupAccepted struct {
	JobID  string `json:"job_id"`
	Queued bool   `json:"queued"`
}
