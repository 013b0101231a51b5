package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/parsers"
	"github.com/username/qualitax/backend/src/processors"
	"github.com/username/qualitax/backend/src/storage"
)

// WriteBatchSize is the hard upper bound on operations per atomic write
// imposed by the document store. Batches are always built at this size.
const WriteBatchSize = 500

const (
	ckQualificationList = "res_qualifications_broker_%s"
	ckLastUploadResult  = "agg_last_upload_result_broker_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type uploadServiceImpl struct {
	store       storage.QualificationStore
	reportCache *cache.Cache
}

func NewUploadService(store storage.QualificationStore, reportCache *cache.Cache) UploadService {
	return &uploadServiceImpl{
		store:       store,
		reportCache: reportCache,
	}
}

func (s *uploadServiceImpl) ProcessUpload(ctx context.Context, fileReader io.Reader, filename, brokerID string, progress ProgressFunc) (*models.BulkUploadResult, error) {
	start := time.Now()
	logger.L.Info("ProcessUpload START", "brokerID", brokerID, "filename", filename)

	parser, err := parsers.GetParser(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	rawRows, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	records := make([]models.ProcessedRecord, 0, len(rawRows))
	for _, raw := range rawRows {
		records = append(records, processRow(raw))
	}

	if err := s.reconcile(ctx, brokerID, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	if err := s.commit(ctx, records, progress); err != nil {
		return nil, err
	}

	result := summarize(records, time.Since(start))

	s.reportCache.Set(fmt.Sprintf(ckLastUploadResult, brokerID), result, DefaultCacheExpiration)
	s.reportCache.Delete(fmt.Sprintf(ckQualificationList, brokerID))

	logger.L.Info("ProcessUpload END", "brokerID", brokerID,
		"total", result.Total, "added", result.Added, "updated", result.Updated,
		"errors", result.Errored, "duration", time.Since(start))
	return result, nil
}

// processRow runs normalizer and validator over one raw line.
func processRow(raw models.RawRow) models.ProcessedRecord {
	q := processors.NormalizeRow(raw)
	errs := processors.ValidateRow(q, raw)
	if len(errs) > 0 {
		return models.ProcessedRecord{Row: raw.Number, Status: models.StatusError, Errors: errs}
	}
	return models.ProcessedRecord{Row: raw.Number, Qualification: q, Status: models.StatusSuccess}
}

// reconcile classifies every valid row as new or update against the
// broker's persisted records. It performs exactly one bulk read and then
// resolves each row with an O(1) lookup instead of issuing one query per
// row.
//
// The lookup key ignores case and excludes tipo_calificacion. Newly
// classified rows are inserted into the same map, so two colliding rows in
// one file resolve to a single record with the later row winning.
func (s *uploadServiceImpl) reconcile(ctx context.Context, brokerID string, records []models.ProcessedRecord) error {
	existing, err := s.store.ListByBroker(ctx, brokerID)
	if err != nil {
		return fmt.Errorf("error reading existing qualifications: %w", err)
	}

	lookup := make(map[string]*models.TaxQualification, len(existing))
	for i := range existing {
		lookup[existing[i].Key()] = &existing[i]
	}

	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.Status != models.StatusSuccess {
			continue
		}

		q := rec.Qualification
		q.BrokerID = brokerID
		q.UpdatedAt = now

		if prior, found := lookup[q.Key()]; found {
			rec.Status = models.StatusUpdated
			rec.IsDuplicate = true
			rec.ExistingID = prior.ID
			q.ID = prior.ID
			q.CreatedAt = prior.CreatedAt
		} else {
			q.ID = models.DeriveQualificationID(brokerID, q.Instrumento, q.Mercado, q.Periodo)
			q.CreatedAt = now
			lookup[q.Key()] = q
		}
	}
	return nil
}

// commit groups the write set into fixed-size chunks and commits every
// chunk concurrently, each as one atomic operation. Chunk completion order
// is unspecified; a failed chunk fails the whole upload while chunks that
// already committed stay committed. That window is accepted and reported,
// not rolled back.
func (s *uploadServiceImpl) commit(ctx context.Context, records []models.ProcessedRecord, progress ProgressFunc) error {
	var writeSet []models.TaxQualification
	for _, rec := range records {
		if rec.Status == models.StatusSuccess || rec.Status == models.StatusUpdated {
			writeSet = append(writeSet, *rec.Qualification)
		}
	}
	if len(writeSet) == 0 {
		return nil
	}

	var batches [][]models.TaxQualification
	for start := 0; start < len(writeSet); start += WriteBatchSize {
		end := start + WriteBatchSize
		if end > len(writeSet) {
			end = len(writeSet)
		}
		batches = append(batches, writeSet[start:end])
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
		firstErr  error
	)

	for _, batch := range batches {
		wg.Add(1)
		go func(batch []models.TaxQualification) {
			defer wg.Done()
			err := s.store.CommitBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			processed += len(batch)
			if progress != nil {
				progress(processed, len(writeSet), "committing")
			}
		}(batch)
	}
	wg.Wait()

	if firstErr != nil {
		logger.L.Error("Batch commit failed; earlier batches remain applied", "error", firstErr)
		return fmt.Errorf("%w: %v", ErrCommitFailed, firstErr)
	}
	return nil
}

// summarize tallies the classified records into the upload result.
func summarize(records []models.ProcessedRecord, elapsed time.Duration) *models.BulkUploadResult {
	result := &models.BulkUploadResult{
		Total:        len(records),
		ElapsedMilli: elapsed.Milliseconds(),
	}
	for _, rec := range records {
		switch rec.Status {
		case models.StatusSuccess:
			result.Added++
			result.Succeeded = append(result.Succeeded, rec)
		case models.StatusUpdated:
			result.Updated++
			result.Succeeded = append(result.Succeeded, rec)
		case models.StatusError:
			result.Errored++
			result.Failed = append(result.Failed, rec)
		}
	}
	return result
}

func (s *uploadServiceImpl) GetLastUploadResult(brokerID string) (*models.BulkUploadResult, bool) {
	if cached, found := s.reportCache.Get(fmt.Sprintf(ckLastUploadResult, brokerID)); found {
		return cached.(*models.BulkUploadResult), true
	}
	return nil, false
}

func (s *uploadServiceImpl) ListQualifications(ctx context.Context, brokerID string) ([]models.TaxQualification, error) {
	cacheKey := fmt.Sprintf(ckQualificationList, brokerID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for qualification list", "brokerID", brokerID)
		return cached.([]models.TaxQualification), nil
	}

	records, err := s.store.ListByBroker(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, records, DefaultCacheExpiration)
	return records, nil
}

func (s *uploadServiceImpl) CreateQualification(ctx context.Context, brokerID string, q *models.TaxQualification) ([]models.ValidationError, error) {
	// A manual entry goes through the same validator as a file row; the
	// pseudo raw row reconstructs the cell values the validator inspects.
	raw := models.RawRow{Number: 1, Fields: map[string]string{
		"instrumento":       q.Instrumento,
		"mercado":           q.Mercado,
		"periodo":           q.Periodo,
		"tipo_calificacion": q.TipoCalificacion,
		"monto":             strconv.FormatFloat(q.Monto, 'f', -1, 64),
	}}
	for _, name := range models.FactorNames {
		raw.Fields[name] = strconv.FormatFloat(q.Factores[name], 'f', -1, 64)
	}

	if errs := processors.ValidateRow(q, raw); len(errs) > 0 {
		return errs, nil
	}

	now := time.Now().UTC()
	q.BrokerID = brokerID
	q.ID = models.DeriveQualificationID(brokerID, q.Instrumento, q.Mercado, q.Periodo)
	q.CreatedAt = now
	q.UpdatedAt = now

	if existing, err := s.store.Get(ctx, brokerID, q.ID); err == nil && existing != nil {
		q.CreatedAt = existing.CreatedAt
	}

	if err := s.store.CommitBatch(ctx, []models.TaxQualification{*q}); err != nil {
		return nil, err
	}
	s.reportCache.Delete(fmt.Sprintf(ckQualificationList, brokerID))
	return nil, nil
}

func (s *uploadServiceImpl) DeleteQualification(ctx context.Context, brokerID, id string) error {
	if err := s.store.SoftDelete(ctx, brokerID, id); err != nil {
		return err
	}
	s.reportCache.Delete(fmt.Sprintf(ckQualificationList, brokerID))
	return nil
}
