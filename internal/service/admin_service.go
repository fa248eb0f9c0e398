package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/export"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
)

const dashboardRecentOrders = 10

type adminOrderReader interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
}

type adminPaymentReader interface {
	LatestForOrder(ctx context.Context, orderID int64) (*models.Payment, error)
	List(ctx context.Context, page, pageSize int) ([]models.PaymentListItem, int, error)
}

type analyticsReader interface {
	StatusCounts(ctx context.Context) ([]models.StatusCount, error)
	CompletedRevenue(ctx context.Context) (float64, error)
	Revenue(ctx context.Context, filter models.RevenueFilter) ([]models.RevenueBucket, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfTableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// AdminService serves read-only aggregates and order lookups for admins.
// Every call recomputes from the source tables.
type AdminService struct {
	orders    adminOrderReader
	payments  adminPaymentReader
	analytics analyticsReader
	presenter *OrderPresenter
	csv       tableRenderer
	pdf       pdfTableRenderer
	cleanup   jobEnqueuer
	audit     auditWriter
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(orders adminOrderReader, payments adminPaymentReader, analytics analyticsReader, presenter *OrderPresenter, cleanup jobEnqueuer, audit auditWriter, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presenter == nil {
		presenter = NewOrderPresenter(nil, logger, OrderPresenterConfig{})
	}
	return &AdminService{
		orders:    orders,
		payments:  payments,
		analytics: analytics,
		presenter: presenter,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cleanup:   cleanup,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Dashboard returns counts by status, total revenue and the latest orders.
func (s *AdminService) Dashboard(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	counts, err := s.analytics.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load status counts")
	}
	revenue, err := s.analytics.CompletedRevenue(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load revenue")
	}
	recent, _, err := s.orders.List(ctx, models.OrderFilter{Page: 1, PageSize: dashboardRecentOrders})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load recent orders")
	}

	byStatus := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	for _, status := range models.OrderStatuses {
		byStatus[status] = 0
	}
	total := 0
	for _, c := range counts {
		byStatus[c.Status] = c.Count
		total += c.Count
	}

	return &dto.AdminDashboardResponse{
		TotalOrders:  total,
		ByStatus:     byStatus,
		TotalRevenue: roundCents(revenue),
		RecentOrders: s.presenter.Views(recent),
		GeneratedAt:  s.now().UTC(),
	}, nil
}

// ListOrders returns a page of orders, 20 per page by default.
func (s *AdminService) ListOrders(ctx context.Context, query dto.AdminOrderQuery) ([]dto.OrderView, *models.Pagination, error) {
	filter := models.OrderFilter{
		SubmitterID: strings.TrimSpace(query.SubmitterID),
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if query.Status != "" {
		status := models.OrderStatus(strings.ToLower(query.Status))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", query.Status))
		}
		filter.Status = status
	}
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize)

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list orders")
	}
	return s.presenter.Views(orders), &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetOrder returns one order with its latest payment.
func (s *AdminService) GetOrder(ctx context.Context, id int64) (*dto.OrderView, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.LatestForOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load payment")
	}
	view := s.presenter.View(order, payment)
	return &view, nil
}

// OrderFileURL signs a download link for the order's document.
func (s *AdminService) OrderFileURL(ctx context.Context, id int64) (*dto.DownloadLink, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	link, err := s.presenter.DownloadLink(order)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	if link == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "order has no stored file")
	}
	return link, nil
}

// ListPayments returns a page of payments with their order tokens.
func (s *AdminService) ListPayments(ctx context.Context, page, pageSize int) ([]models.PaymentListItem, *models.Pagination, error) {
	page, pageSize = clampPage(page, pageSize)
	items, total, err := s.payments.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list payments")
	}
	if items == nil {
		items = []models.PaymentListItem{}
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Revenue buckets completed payments and adds summary totals.
func (s *AdminService) Revenue(ctx context.Context, query dto.RevenueQuery) (*dto.RevenueReport, error) {
	if query.GroupBy == "" {
		query.GroupBy = models.GroupByDay
	}
	if !query.GroupBy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group_by must be day, week or month")
	}
	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}

	buckets, err := s.analytics.Revenue(ctx, models.RevenueFilter{GroupBy: query.GroupBy, DateFrom: query.From, DateTo: query.To})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load revenue")
	}
	if buckets == nil {
		buckets = []models.RevenueBucket{}
	}
	report := &dto.RevenueReport{GroupBy: query.GroupBy, From: query.From, To: query.To, Buckets: buckets}
	for _, b := range buckets {
		report.TotalOrders += b.TotalOrders
		report.TotalRevenue += b.TotalRevenue
	}
	report.TotalRevenue = roundCents(report.TotalRevenue)
	return report, nil
}

// StatusReport returns order counts and values per status.
func (s *AdminService) StatusReport(ctx context.Context) (*dto.StatusReport, error) {
	counts, err := s.analytics.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load status counts")
	}
	if counts == nil {
		counts = []models.StatusCount{}
	}
	report := &dto.StatusReport{Items: counts}
	for _, c := range counts {
		report.TotalOrders += c.Count
		report.TotalValue += c.TotalValue
	}
	report.TotalValue = roundCents(report.TotalValue)
	return report, nil
}

// ExportRevenue renders the revenue rollup as CSV or PDF.
func (s *AdminService) ExportRevenue(ctx context.Context, query dto.RevenueQuery, format dto.ExportFormat) (*dto.ExportedReport, error) {
	report, err := s.Revenue(ctx, query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"period", "orders", "revenue"}}
	for _, b := range report.Buckets {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"period":  formatPeriod(b.Period, report.GroupBy),
			"orders":  fmt.Sprintf("%d", b.TotalOrders),
			"revenue": fmt.Sprintf("%.2f", b.TotalRevenue),
		})
	}
	dataset.Footer = map[string]string{
		"period":  "total",
		"orders":  fmt.Sprintf("%d", report.TotalOrders),
		"revenue": fmt.Sprintf("%.2f", report.TotalRevenue),
	}

	stamp := s.now().UTC().Format("20060102")
	switch format {
	case "", dto.ExportCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render csv")
		}
		return &dto.ExportedReport{Filename: fmt.Sprintf("revenue-%s-%s.csv", report.GroupBy, stamp), ContentType: "text/csv", Body: body}, nil
	case dto.ExportPDF:
		body, err := s.pdf.Render(dataset, fmt.Sprintf("Revenue by %s", report.GroupBy))
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		return &dto.ExportedReport{Filename: fmt.Sprintf("revenue-%s-%s.pdf", report.GroupBy, stamp), ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// TriggerCleanup queues an immediate cleanup sweep.
func (s *AdminService) TriggerCleanup(ctx context.Context, actor AdminContext) (*dto.CleanupAccepted, error) {
	if s.cleanup == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "cleanup queue unavailable")
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobs.TypeCleanupSweep}
	if err := s.cleanup.Enqueue(job); err != nil {
		return nil, appErrors.Internal(err, "failed to queue cleanup")
	}
	if s.audit != nil {
		entry := &models.AuditLog{Action: models.AuditActionCleanupTrigger, Resource: "cleanup", ResourceID: &job.ID, CreatedAt: s.now().UTC()}
		if actor.UserID != "" {
			entry.UserID = &actor.UserID
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to record audit log", zap.Error(err))
		}
	}
	s.logger.Info("cleanup sweep queued", zap.String("job_id", job.ID), zap.String("admin_id", actor.UserID))
	return &dto.CleanupAccepted{JobID: job.ID, Queued: true}, nil
}

func (s *AdminService) loadOrder(ctx context.Context, id int64) (*models.Order, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid order id")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Internal(err, "failed to load order")
	}
	return order, nil
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func formatPeriod(t time.Time, grouping models.RevenueGrouping) string {
	switch grouping {
	case models.GroupByMonth:
		return t.UTC().Format("2006-01")
	case models.GroupByWeek:
		year, week := t.UTC().ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.UTC().Format("2006-01-02")
	}
}
