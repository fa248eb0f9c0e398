package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregate queries for admin reporting.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StatusCounts returns the number and total value of orders per status.
func (r *AnalyticsRepository) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS total_value FROM orders GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	return counts, nil
}

// CompletedRevenue sums the amount of every completed payment.
func (r *AnalyticsRepository) CompletedRevenue(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'completed'`
	var total float64
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("query completed revenue: %w", err)
	}
	return total, nil
}

// Revenue buckets completed payments by day, week or month.
func (r *AnalyticsRepository) Revenue(ctx context.Context, filter models.RevenueFilter) ([]models.RevenueBucket, error) {
	grouping := filter.GroupBy
	if !grouping.Valid() {
		grouping = models.GroupByDay
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(`SELECT date_trunc('%s', created_at) AS period, COUNT(DISTINCT order_id) AS total_orders, COALESCE(SUM(amount), 0) AS total_revenue
FROM payments WHERE status = 'completed'`, grouping))
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND created_at < $%d", len(args)))
	}
	builder.WriteString(" GROUP BY period ORDER BY period")

	var buckets []models.RevenueBucket
	if err := r.db.SelectContext(ctx, &buckets, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	return buckets, nil
}
