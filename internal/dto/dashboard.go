package dto

import (
	"time"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	TotalOrders  int                        `json:"total_orders"`
	ByStatus     map[models.OrderStatus]int `json:"by_status"`
	TotalRevenue float64                    `json:"total_revenue"`
	RecentOrders []OrderView                `json:"recent_orders"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// AdminOrderQuery filters the admin order listing.
type AdminOrderQuery struct {
	Status      string `form:"status"`
	SubmitterID string `form:"submitter_id"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}
