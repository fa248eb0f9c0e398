package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-print-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestAdminFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "full_name", "email", "role", "active", "last_login_at", "created_at", "updated_at"}).
		AddRow(1, "frontdesk", "hash", "Front Desk", "desk@campus.edu", string(models.RoleAdmin), true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin_users WHERE username = $1 LIMIT 1")).
		WithArgs("frontdesk").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "frontdesk")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Nil(t, user.LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminFindByUsernameMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminUserRepository(db)

	mock.ExpectQuery("FROM admin_users").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAdminCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admin_users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminUserRepository(db)

	mock.ExpectQuery("INSERT INTO admin_users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.AdminUser{Username: "frontdesk", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestFacultyCreateAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO faculties").
		WithArgs("Physics", "hash", true, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	faculty := &models.Faculty{DepartmentName: "Physics", PasswordHash: "hash", Active: true, CreatedAt: now}
	require.NoError(t, repo.Create(context.Background(), faculty))
	assert.Equal(t, int64(3), faculty.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM faculties WHERE department_name = $1")).
		WithArgs("Physics").
		WillReturnRows(sqlmock.NewRows([]string{"id", "department_name", "password_hash", "active", "created_at"}).AddRow(3, "Physics", "hash", true, now))
	found, err := repo.FindByDepartment(context.Background(), "Physics")
	require.NoError(t, err)
	assert.True(t, found.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "1"
	err := repo.Create(context.Background(), &models.AuditLog{UserID: &userID, Action: models.AuditActionStatusUpdate, Resource: "orders"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
