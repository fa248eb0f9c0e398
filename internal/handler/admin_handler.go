package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/service"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/response"
)

type adminService interface {
	Dashboard(ctx context.Context) (*dto.AdminDashboardResponse, error)
	ListOrders(ctx context.Context, query dto.AdminOrderQuery) ([]dto.OrderView, *models.Pagination, error)
	GetOrder(ctx context.Context, id int64) (*dto.OrderView, error)
	OrderFileURL(ctx context.Context, id int64) (*dto.DownloadLink, error)
	ListPayments(ctx context.Context, page, pageSize int) ([]models.PaymentListItem, *models.Pagination, error)
	Revenue(ctx context.Context, query dto.RevenueQuery) (*dto.RevenueReport, error)
	StatusReport(ctx context.Context) (*dto.StatusReport, error)
	ExportRevenue(ctx context.Context, query dto.RevenueQuery, format dto.ExportFormat) (*dto.ExportedReport, error)
	TriggerCleanup(ctx context.Context, actor service.AdminContext) (*dto.CleanupAccepted, error)
}

// AdminHandler exposes dashboards, listings and reports to admins.
type AdminHandler struct {
	admin adminService
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(admin adminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Dashboard godoc
// @Summary Admin dashboard
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	dash, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dash, nil)
}

// ListOrders godoc
// @Summary List orders
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param submitter_id query string false "Submitter filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	var query dto.AdminOrderQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	orders, page, err := h.admin.ListOrders(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, page)
}

// GetOrder godoc
// @Summary Order detail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.admin.GetOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// OrderFile godoc
// @Summary Signed link to the order document
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /admin/orders/{id}/file [get]
func (h *AdminHandler) OrderFile(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.admin.OrderFileURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// ListPayments godoc
// @Summary List payments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /admin/payments [get]
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, pageSize := pageQuery(c)
	items, pagination, err := h.admin.ListPayments(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Revenue godoc
// @Summary Revenue report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param group_by query string false "day, week or month"
// @Param from query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param to query string false "End date, exclusive"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/revenue [get]
func (h *AdminHandler) Revenue(c *gin.Context) {
	query, err := revenueQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.admin.Revenue(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportRevenue godoc
// @Summary Export revenue report
// @Tags Reports
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Param group_by query string false "day, week or month"
// @Param from query string false "Start date"
// @Param to query string false "End date, exclusive"
// @Success 200 {file} binary
// @Router /admin/reports/revenue/export [get]
func (h *AdminHandler) ExportRevenue(c *gin.Context) {
	query, err := revenueQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportCSV))))
	report, err := h.admin.ExportRevenue(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Body)
}

// StatusReport godoc
// @Summary Orders by status
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/reports/status [get]
func (h *AdminHandler) StatusReport(c *gin.Context) {
	report, err := h.admin.StatusReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// TriggerCleanup godoc
// @Summary Run the cleanup sweep now
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Router /admin/cleanup [post]
func (h *AdminHandler) TriggerCleanup(c *gin.Context) {
	accepted, err := h.admin.TriggerCleanup(c.Request.Context(), adminFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

func revenueQuery(c *gin.Context) (dto.RevenueQuery, error) {
	query := dto.RevenueQuery{GroupBy: models.RevenueGrouping(strings.ToLower(c.Query("group_by")))}
	var err error
	if query.From, err = parseDateParam(c.Query("from")); err != nil {
		return query, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD or RFC3339")
	}
	if query.To, err = parseDateParam(c.Query("to")); err != nil {
		return query, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD or RFC3339")
	}
	return query, nil
}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
