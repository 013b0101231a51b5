package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/qualitax/backend/src/models"
)

var ErrNotFound = errors.New("qualification not found")

// QualificationStore is the storage capability the upload pipeline is built
// against. Handlers and services receive it explicitly so tests can
// substitute an in-memory implementation.
type QualificationStore interface {
	// ListByBroker returns every non-deleted record owned by the broker.
	// The reconciliation engine calls this exactly once per upload.
	ListByBroker(ctx context.Context, brokerID string) ([]models.TaxQualification, error)
	// CommitBatch writes one chunk of records as a single atomic
	// transaction, inserting new ids and overwriting existing ones
	// (last write wins; there is no version check).
	CommitBatch(ctx context.Context, records []models.TaxQualification) error
	Get(ctx context.Context, brokerID, id string) (*models.TaxQualification, error)
	// SoftDelete flags a record as deleted without removing it.
	SoftDelete(ctx context.Context, brokerID, id string) error
}

type sqlQualificationStore struct {
	db *sql.DB
}

func NewQualificationStore(db *sql.DB) QualificationStore {
	return &sqlQualificationStore{db: db}
}

const qualificationColumns = `id, broker_id, instrumento, mercado, periodo, tipo_calificacion,
	f8, f9, f10, f11, f12, f13, f14, f15, f16, f17, f18, f19,
	monto, es_oficial, deleted, created_at, updated_at`

func scanQualification(row interface{ Scan(...any) error }) (*models.TaxQualification, error) {
	var q models.TaxQualification
	factors := make([]float64, len(models.FactorNames))
	dest := []any{&q.ID, &q.BrokerID, &q.Instrumento, &q.Mercado, &q.Periodo, &q.TipoCalificacion}
	for i := range factors {
		dest = append(dest, &factors[i])
	}
	dest = append(dest, &q.Monto, &q.EsOficial, &q.Deleted, &q.CreatedAt, &q.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	q.Factores = make(map[string]float64, len(models.FactorNames))
	for i, name := range models.FactorNames {
		q.Factores[name] = factors[i]
	}
	return &q, nil
}

func (s *sqlQualificationStore) ListByBroker(ctx context.Context, brokerID string) ([]models.TaxQualification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+qualificationColumns+`
		FROM qualifications WHERE broker_id = ? AND deleted = 0
		ORDER BY created_at ASC, id ASC`, brokerID)
	if err != nil {
		return nil, fmt.Errorf("error querying qualifications for broker %s: %w", brokerID, err)
	}
	defer rows.Close()

	var records []models.TaxQualification
	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning qualification row: %w", err)
		}
		records = append(records, *q)
	}
	return records, rows.Err()
}

func (s *sqlQualificationStore) CommitBatch(ctx context.Context, records []models.TaxQualification) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO qualifications (`+qualificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			instrumento = excluded.instrumento,
			mercado = excluded.mercado,
			periodo = excluded.periodo,
			tipo_calificacion = excluded.tipo_calificacion,
			f8 = excluded.f8, f9 = excluded.f9, f10 = excluded.f10, f11 = excluded.f11,
			f12 = excluded.f12, f13 = excluded.f13, f14 = excluded.f14, f15 = excluded.f15,
			f16 = excluded.f16, f17 = excluded.f17, f18 = excluded.f18, f19 = excluded.f19,
			monto = excluded.monto,
			es_oficial = excluded.es_oficial,
			deleted = 0,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("error preparing batch statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range records {
		args := []any{q.ID, q.BrokerID, q.Instrumento, q.Mercado, q.Periodo, q.TipoCalificacion}
		for _, name := range models.FactorNames {
			args = append(args, q.Factores[name])
		}
		args = append(args, q.Monto, q.EsOficial, q.Deleted, q.CreatedAt, q.UpdatedAt)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("error writing qualification %s: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing batch: %w", err)
	}
	return nil
}

func (s *sqlQualificationStore) Get(ctx context.Context, brokerID, id string) (*models.TaxQualification, error) {
	return scanQualification(s.db.QueryRowContext(ctx, `SELECT `+qualificationColumns+`
		FROM qualifications WHERE broker_id = ? AND id = ? AND deleted = 0`, brokerID, id))
}

func (s *sqlQualificationStore) SoftDelete(ctx context.Context, brokerID, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE qualifications SET deleted = 1, updated_at = ?
		WHERE broker_id = ? AND id = ? AND deleted = 0`, time.Now().UTC(), brokerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
