package services

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/security/validation"
)

// ExportService produces the two export artifacts: the per-upload error
// report CSV and the administrator backup document.
type ExportService struct {
	db *sql.DB
}

func NewExportService(db *sql.DB) *ExportService {
	return &ExportService{db: db}
}

// WriteErrorReportCSV writes one line per (row, field) validation failure
// of an upload result, in the fixed export layout: Fila, Campo, Error,
// Valor. Cell values are sanitized against spreadsheet formula injection
// because the file is meant to be opened in Excel.
func (s *ExportService) WriteErrorReportCSV(w io.Writer, result *models.BulkUploadResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Fila", "Campo", "Error", "Valor"}); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, rec := range result.Failed {
		for _, ve := range rec.Errors {
			line := []string{
				fmt.Sprintf("%d", ve.Row),
				validation.SanitizeForFormulaInjection(ve.Field),
				validation.SanitizeForFormulaInjection(ve.Message),
				validation.SanitizeForFormulaInjection(ve.Value),
			}
			if err := cw.Write(line); err != nil {
				return fmt.Errorf("error writing CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// BackupDocument is the administrator-initiated JSON export: user accounts
// and audit history. Qualification records stay out of it; administrators
// are denied qualification data and the backup honors the same boundary.
type BackupDocument struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Users       []models.User     `json:"users"`
	AuditLogs   []models.AuditLog `json:"auditLogs"`
}

func (s *ExportService) BuildBackup() (*BackupDocument, error) {
	users, err := models.ListUsers(s.db)
	if err != nil {
		return nil, fmt.Errorf("error reading users for backup: %w", err)
	}

	var logs []models.AuditLog
	offset := 0
	for {
		page, err := models.ListAuditLogs(s.db, 500, offset)
		if err != nil {
			return nil, fmt.Errorf("error reading audit logs for backup: %w", err)
		}
		logs = append(logs, page...)
		if len(page) < 500 {
			break
		}
		offset += len(page)
	}

	return &BackupDocument{
		GeneratedAt: time.Now().UTC(),
		Users:       users,
		AuditLogs:   logs,
	}, nil
}
