package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/response"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

type downloadTokenParser interface {
	Parse(token string) (subject, key string, expiresAt time.Time, err error)
}

type orderByToken interface {
	FindByToken(ctx context.Context, token string) (*models.Order, error)
}

type fileFetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileHandler serves stored documents behind signed download links.
type FileHandler struct {
	signer downloadTokenParser
	orders orderByToken
	store  fileFetcher
	logger *zap.Logger
}

// NewFileHandler constructs a file handler.
func NewFileHandler(signer downloadTokenParser, orders orderByToken, store fileFetcher, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{signer: signer, orders: orders, store: store, logger: logger}
}

// Download godoc
// @Summary Download an order document
// @Description Requires a signed token from an order view or the admin file endpoint
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	orderToken, key, _, err := h.signer.Parse(c.Query("token"))
	if err != nil {
		msg := "invalid download link"
		if errors.Is(err, storage.ErrExpiredSignedToken) {
			msg = "download link expired"
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, msg))
		return
	}

	order, err := h.orders.FindByToken(c.Request.Context(), orderToken)
	if err != nil || order.StoredFilename != key {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	body, err := h.store.Fetch(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		h.logger.Error("failed to fetch stored file", zap.String("key", key), zap.Error(err))
		response.Error(c, appErrors.StorageFailure(err))
		return
	}
	defer body.Close()

	contentType := order.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", order.OriginalFilename))
	c.DataFromReader(http.StatusOK, order.FileSize, contentType, body, nil)
}
