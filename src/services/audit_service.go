package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
)

// AuditService appends audit entries for sensitive mutations. A failed
// audit write must never block the primary action, so Record swallows
// storage errors after logging them.
type AuditService interface {
	Record(entry models.AuditLog)
	List(limit, offset int) ([]models.AuditLog, error)
}

type auditServiceImpl struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) AuditService {
	return &auditServiceImpl{db: db}
}

func (s *auditServiceImpl) Record(entry models.AuditLog) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()

	if err := models.InsertAuditLog(s.db, &entry); err != nil {
		logger.L.Warn("Failed to write audit log entry; continuing",
			"action", entry.Action, "resource", entry.Resource, "error", err)
	}
}

func (s *auditServiceImpl) List(limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return models.ListAuditLogs(s.db, limit, offset)
}
