package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/service"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/response"
)

type paymentService interface {
	Process(ctx context.Context, req dto.ProcessPaymentRequest) (*models.Payment, error)
}

type quoteCalculator interface {
	Compute(pageCount, copies int, colorEnabled bool) service.Pricing
}

// PaymentHandler records payments and serves price quotes.
type PaymentHandler struct {
	payments paymentService
	prices   quoteCalculator
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(payments paymentService, prices quoteCalculator) *PaymentHandler {
	if prices == nil {
		prices = service.DefaultPriceSchedule
	}
	return &PaymentHandler{payments: payments, prices: prices}
}

// Pay godoc
// @Summary Pay for an order
// @Description The amount must equal the order total
// @Tags Payments
// @Accept json
// @Produce json
// @Param token path string true "Tracking token"
// @Param payload body dto.ProcessPaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /orders/{token}/payment [post]
func (h *PaymentHandler) Pay(c *gin.Context) {
	var req dto.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	req.TrackingToken = c.Param("token")

	payment, err := h.payments.Process(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Quote godoc
// @Summary Price a selection
// @Tags Pricing
// @Accept json
// @Produce json
// @Param payload body dto.QuoteRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pricing/quote [post]
func (h *PaymentHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quote payload"))
		return
	}
	if req.PageCount < 0 || req.PageCount > 5000 || req.Copies < 1 || req.Copies > 100 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page_count must be 0-5000 and copies 1-100"))
		return
	}
	response.JSON(c, http.StatusOK, h.prices.Compute(req.PageCount, req.Copies, req.Color).View(), nil)
}
