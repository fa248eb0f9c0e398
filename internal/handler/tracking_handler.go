package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/pkg/response"
)

type trackingService interface {
	TrackByToken(ctx context.Context, token string) (*dto.OrderView, error)
	TrackBySubmitter(ctx context.Context, submitterID string) (*dto.OrderView, error)
	History(ctx context.Context, token string) (*dto.TrackingHistory, error)
	Receipt(ctx context.Context, token string) ([]byte, error)
	Payment(ctx context.Context, token string) (*models.Payment, error)
}

// TrackingHandler exposes the public order lookups.
type TrackingHandler struct {
	tracking trackingService
}

// NewTrackingHandler constructs a tracking handler.
func NewTrackingHandler(tracking trackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Track godoc
// @Summary Track an order
// @Tags Tracking
// @Produce json
// @Param token path string true "Tracking token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /orders/{token} [get]
func (h *TrackingHandler) Track(c *gin.Context) {
	view, err := h.tracking.TrackByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// LatestBySubmitter godoc
// @Summary Latest order of a submitter
// @Tags Tracking
// @Produce json
// @Param id path string true "Roll number or department"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submitters/{id}/orders/latest [get]
func (h *TrackingHandler) LatestBySubmitter(c *gin.Context) {
	view, err := h.tracking.TrackBySubmitter(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// History godoc
// @Summary Order timeline
// @Tags Tracking
// @Produce json
// @Param token path string true "Tracking token"
// @Success 200 {object} response.Envelope
// @Router /orders/{token}/history [get]
func (h *TrackingHandler) History(c *gin.Context) {
	history, err := h.tracking.History(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Receipt godoc
// @Summary Download the order receipt
// @Tags Tracking
// @Produce application/pdf
// @Param token path string true "Tracking token"
// @Success 200 {file} binary
// @Router /orders/{token}/receipt [get]
func (h *TrackingHandler) Receipt(c *gin.Context) {
	token := c.Param("token")
	body, err := h.tracking.Receipt(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "receipt-"+token+".pdf", "application/pdf", body)
}

// Payment godoc
// @Summary Payment recorded for an order
// @Tags Payments
// @Produce json
// @Param token path string true "Tracking token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /orders/{token}/payment [get]
func (h *TrackingHandler) Payment(c *gin.Context) {
	payment, err := h.tracking.Payment(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}
