package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/repository"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/ratelimit"
)

type mockAdminRepo struct {
	users            map[string]*models.AdminUser
	createErr        error
	countErr         error
	lastLoginUpdated bool
}

func (m *mockAdminRepo) FindByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAdminRepo) Create(_ context.Context, user *models.AdminUser) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = int64(len(m.users) + 1)
	m.users[user.Username] = user
	return nil
}

func (m *mockAdminRepo) UpdateLastLogin(context.Context, int64, time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAdminRepo) Count(context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.users), nil
}

type mockFacultyRepo struct {
	faculties map[string]*models.Faculty
	createErr error
}

func (m *mockFacultyRepo) FindByDepartment(_ context.Context, department string) (*models.Faculty, error) {
	f, ok := m.faculties[department]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f, nil
}

func (m *mockFacultyRepo) Create(_ context.Context, faculty *models.Faculty) error {
	if m.createErr != nil {
		return m.createErr
	}
	faculty.ID = int64(len(m.faculties) + 1)
	m.faculties[faculty.DepartmentName] = faculty
	return nil
}

type authFixture struct {
	svc       *AuthService
	admins    *mockAdminRepo
	faculties *mockFacultyRepo
	audit     *fakeAudit
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthFixture(t *testing.T, limiter ratelimit.Limiter) *authFixture {
	t.Helper()
	admins := &mockAdminRepo{users: map[string]*models.AdminUser{
		"root":    {ID: 1, Username: "root", FullName: "Shop Owner", PasswordHash: hash(t, "password"), Role: models.RoleSuperAdmin, Active: true},
		"retired": {ID: 2, Username: "retired", PasswordHash: hash(t, "password"), Role: models.RoleAdmin, Active: false},
	}}
	faculties := &mockFacultyRepo{faculties: map[string]*models.Faculty{
		"Physics": {ID: 3, DepartmentName: "Physics", PasswordHash: hash(t, "quantum-leap"), Active: true},
	}}
	audit := &fakeAudit{}
	svc := NewAuthService(admins, faculties, audit, limiter, nil, nil, nil, AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		BcryptCost:        bcrypt.MinCost,
	})
	return &authFixture{svc: svc, admins: admins, faculties: faculties, audit: audit}
}

func TestAuthServiceAdminLoginSuccess(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "password"}, ClientInfo{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleSuperAdmin, res.Principal.Role)
	assert.Equal(t, "Shop Owner", res.Principal.Name)
	assert.True(t, f.admins.lastLoginUpdated)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, f.audit.entries[0].Action)
	assert.Equal(t, "10.0.0.1", f.audit.entries[0].IPAddress)

	claims, err := f.svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.UserID)
	assert.Equal(t, models.RoleSuperAdmin, claims.Role)
}

func TestAuthServiceAdminLoginFailures(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "wrong"}, ClientInfo{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials.Code))

	_, err = f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "ghost", Password: "password"}, ClientInfo{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials.Code))

	_, err = f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "retired", Password: "password"}, ClientInfo{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInactiveAccount.Code))

	_, err = f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root"}, ClientInfo{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestAuthServiceThrottlesRepeatedFailures(t *testing.T) {
	limiter := ratelimit.NewMemory(ratelimit.Policy{MaxAttempts: 2, Window: time.Minute})
	f := newAuthFixture(t, limiter)
	client := ClientInfo{IP: "10.0.0.9"}

	for i := 0; i < 2; i++ {
		_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "wrong"}, client)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials.Code))
	}
	_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "password"}, client)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTooManyRequests.Code))

	// Another address is unaffected.
	_, err = f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "password"}, ClientInfo{IP: "10.0.0.10"})
	assert.NoError(t, err)
}

func TestAuthServiceThrottlesAddressAcrossAccounts(t *testing.T) {
	limiter := ratelimit.NewMemory(ratelimit.Policy{MaxAttempts: 2, Window: time.Minute})
	f := newAuthFixture(t, limiter)
	client := ClientInfo{IP: "10.0.0.9"}

	for _, username := range []string{"alice", "bob"} {
		_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: username, Password: "guess"}, client)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials.Code))
	}
	_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "carol", Password: "guess"}, client)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTooManyRequests.Code))

	_, err = f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "password"}, client)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTooManyRequests.Code))
}

func TestAuthServiceFacultyLogin(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.FacultyLogin(context.Background(), models.FacultyLoginRequest{DepartmentName: " Physics ", Password: "quantum-leap"}, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, res.Principal.Role)
	assert.Equal(t, "Physics", res.Principal.Name)

	_, err = f.svc.FacultyLogin(context.Background(), models.FacultyLoginRequest{DepartmentName: "Physics", Password: "nope"}, ClientInfo{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials.Code))
}

func TestAuthServiceValidateTokenRejectsExpired(t *testing.T) {
	f := newAuthFixture(t, nil)
	issued := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return issued }

	res, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Username: "root", Password: "password"}, ClientInfo{})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = f.svc.ValidateToken(res.AccessToken)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "1", Role: models.RoleAdmin}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = f.svc.ValidateToken(forged)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))
}

func TestAuthServiceRegisterAdmin(t *testing.T) {
	f := newAuthFixture(t, nil)
	req := dto.RegisterAdminRequest{Username: "desk1", Password: "long-enough", Role: models.RoleAdmin}

	user, err := f.svc.RegisterAdmin(context.Background(), req, AdminContext{UserID: "1", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long-enough")))

	req.Role = models.RoleSuperAdmin
	_, err = f.svc.RegisterAdmin(context.Background(), req, AdminContext{UserID: "2", Role: models.RoleAdmin})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))

	f.admins.createErr = repository.ErrDuplicateUsername
	req.Role = ""
	_, err = f.svc.RegisterAdmin(context.Background(), req, AdminContext{UserID: "1", Role: models.RoleSuperAdmin})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
}

func TestAuthServiceCreateFaculty(t *testing.T) {
	f := newAuthFixture(t, nil)

	faculty, err := f.svc.CreateFaculty(context.Background(), dto.CreateFacultyRequest{DepartmentName: "Chemistry", Password: "benzene-ring"}, AdminContext{UserID: "1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, faculty.Active)
	assert.Equal(t, models.AuditActionFacultyCreate, f.audit.entries[len(f.audit.entries)-1].Action)

	f.faculties.createErr = repository.ErrDuplicateDepartment
	_, err = f.svc.CreateFaculty(context.Background(), dto.CreateFacultyRequest{DepartmentName: "Chemistry", Password: "benzene-ring"}, AdminContext{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
}

func TestAuthServiceEnsureSuperAdmin(t *testing.T) {
	f := newAuthFixture(t, nil)

	created, err := f.svc.EnsureSuperAdmin(context.Background(), "root", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created, "existing admins skip the bootstrap")

	f.admins.users = map[string]*models.AdminUser{}
	created, err = f.svc.EnsureSuperAdmin(context.Background(), " root ", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)
	user := f.admins.users["root"]
	require.NotNil(t, user)
	assert.Equal(t, models.RoleSuperAdmin, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("bootstrap-pass")))

	created, err = f.svc.EnsureSuperAdmin(context.Background(), "other", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAuthServiceEnsureSuperAdminRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.admins.users = map[string]*models.AdminUser{}

	_, err := f.svc.EnsureSuperAdmin(context.Background(), "root", "short")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	created, err := f.svc.EnsureSuperAdmin(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
