package dto

import "github.com/noah-isme/campus-print-api/internal/models"

// RegisterAdminRequest creates an admin account.
type RegisterAdminRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=50,alphanum"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	FullName string          `json:"full_name" validate:"max=150"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERADMIN"`
}

// CreateFacultyRequest registers a department credential.
type CreateFacultyRequest struct {
	DepartmentName string `json:"department_name" validate:"required,max=100"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
}
