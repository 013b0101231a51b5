package models

// RecordStatus tags the outcome of running one input row through the
// normalizer, validator and reconciliation engine.
type RecordStatus string

const (
	StatusSuccess RecordStatus = "success"
	StatusUpdated RecordStatus = "updated"
	StatusError   RecordStatus = "error"
)

// ErrorCategory classifies a row-level validation failure for the UI and
// the error-export CSV.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryFormat     ErrorCategory = "format"
	CategoryFactorSum  ErrorCategory = "factorSum"
	CategoryDuplicate  ErrorCategory = "duplicate"
)

// ValidationError is one field-level failure on one input row. Validation
// failures are data, not control flow: they are collected and reported,
// never raised as errors.
type ValidationError struct {
	Row      int           `json:"fila"`
	Field    string        `json:"campo"`
	Value    string        `json:"valor"`
	Message  string        `json:"error"`
	Category ErrorCategory `json:"categoria"`
}

// RawRow is one data line of an uploaded file, header row excluded. Row
// numbers match the source file (header is row 1, first data row is 2) so
// user-facing error messages line up with what the user sees in Excel.
type RawRow struct {
	Number int
	Fields map[string]string
}

// ProcessedRecord is the per-row result of the pipeline. Discarded after
// the upload summary is rendered; never persisted.
type ProcessedRecord struct {
	Row           int               `json:"fila"`
	Qualification *TaxQualification `json:"calificacion,omitempty"`
	Status        RecordStatus      `json:"status"`
	Errors        []ValidationError `json:"errores,omitempty"`
	IsDuplicate   bool              `json:"esDuplicado"`
	ExistingID    string            `json:"idExistente,omitempty"`
}

// BulkUploadResult aggregates one upload run.
// Invariant: Added + Updated + Errored == Total.
type BulkUploadResult struct {
	Total        int               `json:"total"`
	Added        int               `json:"agregados"`
	Updated      int               `json:"actualizados"`
	Errored      int               `json:"conError"`
	Succeeded    []ProcessedRecord `json:"exitosos"`
	Failed       []ProcessedRecord `json:"fallidos"`
	ElapsedMilli int64             `json:"tiempoMs"`
}
