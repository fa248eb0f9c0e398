package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/service"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/response"
)

type orderService interface {
	Submit(ctx context.Context, req dto.SubmitOrderRequest, upload service.Upload) (*dto.SubmitOrderResponse, error)
	Cancel(ctx context.Context, token string, cc service.CancelContext) (*dto.CancelOrderResponse, error)
	AdvanceStatus(ctx context.Context, id int64, newStatus string, admin service.AdminContext) (*dto.OrderView, error)
}

// OrderHandler exposes submission, cancellation and status endpoints.
type OrderHandler struct {
	orders        orderService
	maxUploadSize int64
}

// NewOrderHandler creates an order handler. maxUploadSize bounds the request body.
func NewOrderHandler(orders orderService, maxUploadSize int64) *OrderHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = service.DefaultMaxUploadBytes
	}
	return &OrderHandler{orders: orders, maxUploadSize: maxUploadSize}
}

// Submit godoc
// @Summary Submit a print order
// @Description Multipart upload of one document plus print options. A faculty token marks the order as a faculty submission.
// @Tags Orders
// @Accept mpfd
// @Produce json
// @Param file formData file true "Document (pdf, doc, docx, jpg, jpeg, png)"
// @Param submitter_id formData string false "Roll number (students)"
// @Param pages formData string true "Zero-based page indexes, JSON array or comma list"
// @Param copies formData int true "Copies"
// @Param color formData bool false "Color printing"
// @Param double_sided formData bool false "Double sided"
// @Param paper_size formData string true "A4, A3, Letter or Legal"
// @Param binding formData string true "none, staple, spiral or thermal"
// @Param notes formData string false "Notes"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	// Leave room for the form fields around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrFileTooLarge)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	req, err := bindSubmitForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleFaculty {
		req.SubmitterType = models.SubmitterFaculty
		req.SubmitterID = claims.Name
	} else {
		req.SubmitterType = models.SubmitterStudent
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer file.Close()

	res, err := h.orders.Submit(c.Request.Context(), req, service.Upload{
		Name:         fileHeader.Filename,
		Size:         fileHeader.Size,
		Reader:       file,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Cancel godoc
// @Summary Cancel an order
// @Description Deletes a pending order within 30 seconds of submission
// @Tags Orders
// @Produce json
// @Param token path string true "Tracking token"
// @Param submitter_id query string false "Roll number, checked against the order"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /orders/{token} [delete]
func (h *OrderHandler) Cancel(c *gin.Context) {
	cc := service.CancelContext{SubmitterID: strings.TrimSpace(c.Query("submitter_id"))}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleFaculty {
		cc.SubmitterID = claims.Name
	}
	res, err := h.orders.Cancel(c.Request.Context(), c.Param("token"), cc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateStatus godoc
// @Summary Advance order status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	view, err := h.orders.AdvanceStatus(c.Request.Context(), id, req.Status, adminFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func bindSubmitForm(c *gin.Context) (dto.SubmitOrderRequest, error) {
	req := dto.SubmitOrderRequest{
		SubmitterID: strings.TrimSpace(c.PostForm("submitter_id")),
		PaperSize:   strings.TrimSpace(c.DefaultPostForm("paper_size", models.PaperA4)),
		Binding:     strings.TrimSpace(c.DefaultPostForm("binding", models.BindingNone)),
		Notes:       c.PostForm("notes"),
	}
	if req.SubmitterID == "" {
		req.SubmitterID = strings.TrimSpace(c.PostForm("roll_no"))
	}

	var err error
	if req.Copies, err = strconv.Atoi(c.DefaultPostForm("copies", "1")); err != nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "copies must be a number")
	}
	if req.Color, err = formBool(c.PostForm("color")); err != nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "color must be true or false")
	}
	if req.DoubleSided, err = formBool(c.PostForm("double_sided")); err != nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "double_sided must be true or false")
	}
	if req.Pages, err = parsePages(c.PostForm("pages")); err != nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "pages must be a list of page numbers")
	}
	return req, nil
}

// parsePages accepts a JSON array ("[0,1,2]") or a comma list ("0,1,2").
func parsePages(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var pages []int
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &pages); err != nil {
			return nil, err
		}
		return pages, nil
	}
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func formBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
