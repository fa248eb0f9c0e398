package models

import "time"

// RevenueGrouping selects the rollup bucket for revenue reports.
type RevenueGrouping string

const (
	GroupByDay   RevenueGrouping = "day"
	GroupByWeek  RevenueGrouping = "week"
	GroupByMonth RevenueGrouping = "month"
)

// Valid reports whether the grouping is supported.
func (g RevenueGrouping) Valid() bool {
	return g == GroupByDay || g == GroupByWeek || g == GroupByMonth
}

// StatusCount aggregates orders per status.
type StatusCount struct {
	Status     OrderStatus `db:"status" json:"status"`
	Count      int         `db:"count" json:"count"`
	TotalValue float64     `db:"total_value" json:"total_value"`
}

// RevenueFilter scopes revenue rollups.
type RevenueFilter struct {
	GroupBy  RevenueGrouping
	DateFrom *time.Time
	DateTo   *time.Time
}

// RevenueBucket is one time bucket of completed payments.
type RevenueBucket struct {
	Period       time.Time `db:"period" json:"period"`
	TotalOrders  int       `db:"total_orders" json:"total_orders"`
	TotalRevenue float64   `db:"total_revenue" json:"total_revenue"`
}
