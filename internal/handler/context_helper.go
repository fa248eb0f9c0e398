package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-print-api/internal/middleware"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/service"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func adminFromContext(c *gin.Context) service.AdminContext {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.AdminContext{}
	}
	return service.AdminContext{UserID: claims.UserID, Role: claims.Role}
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid order id")
	}
	return id, nil
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return page, pageSize
}
