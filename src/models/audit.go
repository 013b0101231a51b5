package models

import (
	"database/sql"
	"time"
)

// AuditAction enumerates the sensitive mutations that get an append-only
// audit entry.
type AuditAction string

const (
	AuditActionLogin          AuditAction = "login"
	AuditActionLogout         AuditAction = "logout"
	AuditActionUserCreate     AuditAction = "user_create"
	AuditActionUserRoleChange AuditAction = "user_role_change"
	AuditActionUserDeactivate AuditAction = "user_deactivate"
	AuditActionQualifCreate   AuditAction = "qualification_create"
	AuditActionQualifDelete   AuditAction = "qualification_delete"
	AuditActionBulkUpload     AuditAction = "bulk_upload"
	AuditActionErrorExport    AuditAction = "error_export"
	AuditActionBackupExport   AuditAction = "backup_export"
)

type AuditResource string

const (
	ResourceUser          AuditResource = "user"
	ResourceQualification AuditResource = "qualification"
	ResourceSession       AuditResource = "session"
	ResourceBackup        AuditResource = "backup"
)

// AuditLog is one append-only system event. Entries are never updated or
// deleted by the application.
type AuditLog struct {
	ID         string        `json:"id"`
	ActorUID   string        `json:"actorUid"`
	ActorEmail string        `json:"actorEmail"`
	Action     AuditAction   `json:"action"`
	Resource   AuditResource `json:"resource"`
	ResourceID string        `json:"resourceId,omitempty"`
	Details    string        `json:"details,omitempty"`
	Before     string        `json:"before,omitempty"`
	After      string        `json:"after,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func InsertAuditLog(db *sql.DB, entry *AuditLog) error {
	_, err := db.Exec(`INSERT INTO audit_logs (id, actor_uid, actor_email, action, resource, resource_id, details, before_state, after_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ActorUID, entry.ActorEmail, string(entry.Action), string(entry.Resource),
		entry.ResourceID, entry.Details, entry.Before, entry.After, entry.CreatedAt)
	return err
}

// ListAuditLogs returns entries newest first, paged by limit/offset.
func ListAuditLogs(db *sql.DB, limit, offset int) ([]AuditLog, error) {
	rows, err := db.Query(`SELECT id, actor_uid, actor_email, action, resource, resource_id, details, before_state, after_state, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditLog
	for rows.Next() {
		var e AuditLog
		if err := rows.Scan(&e.ID, &e.ActorUID, &e.ActorEmail, &e.Action, &e.Resource,
			&e.ResourceID, &e.Details, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
