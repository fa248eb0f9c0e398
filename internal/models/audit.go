package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionStatusUpdate   = "ORDER_STATUS_UPDATE"
	AuditActionAdminCreate    = "ADMIN_CREATE"
	AuditActionFacultyCreate  = "FACULTY_CREATE"
	AuditActionCleanupTrigger = "CLEANUP_TRIGGER"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
