package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/repository"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/ratelimit"
)

type adminUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
	UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error
	Count(ctx context.Context) (int, error)
}

type facultyRepository interface {
	FindByDepartment(ctx context.Context, department string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type loginMetrics interface {
	LoginThrottled()
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	BcryptCost        int
}

// ClientInfo describes the caller of a login request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthService authenticates admins and faculty departments and manages their
// credentials.
type AuthService struct {
	admins    adminUserRepository
	faculties facultyRepository
	audit     auditWriter
	limiter   ratelimit.Limiter
	metrics   loginMetrics
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. A nil limiter disables throttling.
func NewAuthService(admins adminUserRepository, faculties facultyRepository, audit auditWriter, limiter ratelimit.Limiter, metrics loginMetrics, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.Issuer == "" {
		config.Issuer = "campus-print-api"
	}
	return &AuthService{
		admins:    admins,
		faculties: faculties,
		audit:     audit,
		limiter:   limiter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// AdminLogin authenticates an admin and returns an access token.
func (s *AuthService) AdminLogin(ctx context.Context, req models.LoginRequest, client ClientInfo) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	keys := limiterKeys("admin", client.IP, req.Username)
	if !s.allowLogin(ctx, keys) {
		s.metrics.LoginThrottled()
		return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "too many failed login attempts, try again later")
	}

	user, err := s.admins.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordLogin(ctx, keys, false)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLogin(ctx, keys, false)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	s.recordLogin(ctx, keys, true)

	now := s.now().UTC()
	if err := s.admins.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	id := strconv.FormatInt(user.ID, 10)
	name := user.FullName
	if name == "" {
		name = user.Username
	}
	s.recordAudit(ctx, id, models.AuditActionLogin, "auth", id, client)
	return s.issue(id, name, user.Role, now)
}

// FacultyLogin authenticates a department and returns a faculty access token.
func (s *AuthService) FacultyLogin(ctx context.Context, req models.FacultyLoginRequest, client ClientInfo) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	department := strings.TrimSpace(req.DepartmentName)
	keys := limiterKeys("faculty", client.IP, department)
	if !s.allowLogin(ctx, keys) {
		s.metrics.LoginThrottled()
		return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "too many failed login attempts, try again later")
	}

	faculty, err := s.faculties.FindByDepartment(ctx, department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordLogin(ctx, keys, false)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid department or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch department")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(faculty.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLogin(ctx, keys, false)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid department or password")
	}
	if !faculty.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "department account is inactive")
	}
	s.recordLogin(ctx, keys, true)

	return s.issue(strconv.FormatInt(faculty.ID, 10), faculty.DepartmentName, models.RoleFaculty, s.now().UTC())
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// RegisterAdmin creates an admin account with a bcrypt hashed password.
func (s *AuthService) RegisterAdmin(ctx context.Context, req dto.RegisterAdminRequest, actor AdminContext) (*models.AdminUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin payload")
	}
	role := req.Role
	if role == "" {
		role = models.RoleAdmin
	}
	if role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only superadmins can create superadmins")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	now := s.now().UTC()
	user := &models.AdminUser{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Internal(err, "failed to create admin")
	}

	id := strconv.FormatInt(user.ID, 10)
	s.recordAudit(ctx, actor.UserID, models.AuditActionAdminCreate, "admin_users", id, ClientInfo{})
	return user, nil
}

// EnsureSuperAdmin creates the first superadmin when no admin account exists.
// It reports whether an account was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	total, err := s.admins.Count(ctx)
	if err != nil {
		return false, appErrors.Internal(err, "failed to count admins")
	}
	if total > 0 {
		return false, nil
	}
	if len(password) < 8 {
		return false, appErrors.Clone(appErrors.ErrValidation, "bootstrap password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return false, appErrors.Internal(err, "failed to hash password")
	}
	now := s.now().UTC()
	user := &models.AdminUser{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     username,
		Role:         models.RoleSuperAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return false, nil
		}
		return false, appErrors.Internal(err, "failed to create admin")
	}
	s.logger.Info("bootstrap superadmin created", zap.String("username", username))
	s.recordAudit(ctx, "", models.AuditActionAdminCreate, "admin_users", strconv.FormatInt(user.ID, 10), ClientInfo{})
	return true, nil
}

// CreateFaculty registers a department credential.
func (s *AuthService) CreateFaculty(ctx context.Context, req dto.CreateFacultyRequest, actor AdminContext) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	faculty := &models.Faculty{
		DepartmentName: strings.TrimSpace(req.DepartmentName),
		PasswordHash:   string(hash),
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.faculties.Create(ctx, faculty); err != nil {
		if errors.Is(err, repository.ErrDuplicateDepartment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department already registered")
		}
		return nil, appErrors.Internal(err, "failed to create faculty")
	}

	s.recordAudit(ctx, actor.UserID, models.AuditActionFacultyCreate, "faculties", strconv.FormatInt(faculty.ID, 10), ClientInfo{})
	return faculty, nil
}

func (s *AuthService) issue(userID, name string, role models.UserRole, issuedAt time.Time) (*models.LoginResponse, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: userID,
		Role:   role,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		Principal:   models.UserInfo{ID: userID, Name: name, Role: role},
		IssuedAt:    issuedAt,
	}, nil
}

func (s *AuthService) recordAudit(ctx context.Context, userID, action, resource, resourceID string, client ClientInfo) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// limiterKeys returns the per-address key followed by the per-account key.
// Failures count against both, so one address cannot spread guesses across
// accounts.
func limiterKeys(kind, ip, account string) []string {
	address := kind + "|" + ip
	return []string{address, address + "|" + strings.ToLower(strings.TrimSpace(account))}
}

func (s *AuthService) allowLogin(ctx context.Context, keys []string) bool {
	for _, key := range keys {
		if !s.limiter.Allow(ctx, key) {
			return false
		}
	}
	return true
}

func (s *AuthService) recordLogin(ctx context.Context, keys []string, success bool) {
	for _, key := range keys {
		s.limiter.Record(ctx, key, success)
	}
}
