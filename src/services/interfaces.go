package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/qualitax/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("file parsing failed")
	ErrProcessingFailed = errors.New("upload processing failed")
	ErrCommitFailed     = errors.New("bulk upload commit failed")
)

// ProgressFunc receives a progress report after each committed write batch.
type ProgressFunc func(processed, total int, phase string)

// UploadService runs the bulk-upload pipeline and serves the qualification
// data owned by a broker.
type UploadService interface {
	// ProcessUpload parses the file, validates every row, reconciles the
	// rows against the broker's existing records and commits the write set
	// in fixed-size batches. progress may be nil.
	ProcessUpload(ctx context.Context, fileReader io.Reader, filename, brokerID string, progress ProgressFunc) (*models.BulkUploadResult, error)

	// GetLastUploadResult returns the cached result of the broker's most
	// recent upload, if still cached. Used by the error-export endpoint.
	GetLastUploadResult(brokerID string) (*models.BulkUploadResult, bool)

	ListQualifications(ctx context.Context, brokerID string) ([]models.TaxQualification, error)

	// CreateQualification validates and persists one manually entered
	// record. Validation failures come back as the first return value with
	// a nil error; they are data, not failures of the operation itself.
	CreateQualification(ctx context.Context, brokerID string, q *models.TaxQualification) ([]models.ValidationError, error)

	DeleteQualification(ctx context.Context, brokerID, id string) error
}
