package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// ErrDuplicateUsername is returned when an admin username is already registered.
var ErrDuplicateUsername = errors.New("username already exists")

const adminColumns = `id, username, password_hash, full_name, email, role, active, last_login_at, created_at, updated_at`

// AdminUserRepository provides database access for admin accounts.
type AdminUserRepository struct {
	db *sqlx.DB
}

// NewAdminUserRepository creates a new instance of AdminUserRepository.
func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// FindByUsername returns an admin by username.
func (r *AdminUserRepository) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE username = $1 LIMIT 1`
	var user models.AdminUser
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by username: %w", err)
	}
	return &user, nil
}

// Create inserts a new admin and fills in the generated id.
func (r *AdminUserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	const query = `INSERT INTO admin_users (username, password_hash, full_name, email, role, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHash, user.FullName, user.Email, user.Role, user.Active, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login_at timestamp for an admin.
func (r *AdminUserRepository) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	const query = `UPDATE admin_users SET last_login_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Count returns the number of admin accounts.
func (r *AdminUserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_users`); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return total, nil
}
