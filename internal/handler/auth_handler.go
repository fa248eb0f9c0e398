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

type authService interface {
	AdminLogin(ctx context.Context, req models.LoginRequest, client service.ClientInfo) (*models.LoginResponse, error)
	FacultyLogin(ctx context.Context, req models.FacultyLoginRequest, client service.ClientInfo) (*models.LoginResponse, error)
	RegisterAdmin(ctx context.Context, req dto.RegisterAdminRequest, actor service.AdminContext) (*models.AdminUser, error)
	CreateFaculty(ctx context.Context, req dto.CreateFacultyRequest, actor service.AdminContext) (*models.Faculty, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Admin login
// @Description Authenticate an admin by username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.AdminLogin(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// FacultyLogin godoc
// @Summary Faculty department login
// @Description Authenticate a department to submit faculty orders
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.FacultyLoginRequest true "Department credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/faculty/login [post]
func (h *AuthHandler) FacultyLogin(c *gin.Context) {
	var req models.FacultyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.FacultyLogin(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current principal
// @Description Returns the authenticated admin or department
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, models.UserInfo{ID: claims.UserID, Name: claims.Name, Role: claims.Role}, nil)
}

// RegisterAdmin godoc
// @Summary Create an admin account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterAdminRequest true "Admin"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users [post]
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req dto.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admin payload"))
		return
	}
	user, err := h.service.RegisterAdmin(c.Request.Context(), req, adminFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// CreateFaculty godoc
// @Summary Register a department credential
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateFacultyRequest true "Department"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/faculties [post]
func (h *AuthHandler) CreateFaculty(c *gin.Context) {
	var req dto.CreateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid faculty payload"))
		return
	}
	faculty, err := h.service.CreateFaculty(c.Request.Context(), req, adminFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, faculty)
}
