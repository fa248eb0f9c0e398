package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// ErrDuplicateDepartment is returned when a department already has a credential.
var ErrDuplicateDepartment = errors.New("department already registered")

// FacultyRepository provides database access for department credentials.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new instance of FacultyRepository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// FindByDepartment returns the credential of a department.
func (r *FacultyRepository) FindByDepartment(ctx context.Context, department string) (*models.Faculty, error) {
	const query = `SELECT id, department_name, password_hash, active, created_at FROM faculties WHERE department_name = $1 LIMIT 1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find faculty by department: %w", err)
	}
	return &faculty, nil
}

// Create inserts a department credential.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty) error {
	const query = `INSERT INTO faculties (department_name, password_hash, active, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query, faculty.DepartmentName, faculty.PasswordHash, faculty.Active, faculty.CreatedAt).Scan(&faculty.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateDepartment
		}
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}
