package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/qualitax/backend/src/models"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A second pooled connection would see its own empty in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE qualifications (
		id TEXT PRIMARY KEY,
		broker_id TEXT NOT NULL,
		instrumento TEXT NOT NULL,
		mercado TEXT NOT NULL,
		periodo TEXT NOT NULL,
		tipo_calificacion TEXT NOT NULL,
		f8 REAL NOT NULL DEFAULT 0, f9 REAL NOT NULL DEFAULT 0,
		f10 REAL NOT NULL DEFAULT 0, f11 REAL NOT NULL DEFAULT 0,
		f12 REAL NOT NULL DEFAULT 0, f13 REAL NOT NULL DEFAULT 0,
		f14 REAL NOT NULL DEFAULT 0, f15 REAL NOT NULL DEFAULT 0,
		f16 REAL NOT NULL DEFAULT 0, f17 REAL NOT NULL DEFAULT 0,
		f18 REAL NOT NULL DEFAULT 0, f19 REAL NOT NULL DEFAULT 0,
		monto REAL NOT NULL DEFAULT 0,
		es_oficial BOOLEAN DEFAULT FALSE,
		deleted BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	return db
}

func sampleQualification(id, brokerID, instrumento string) models.TaxQualification {
	now := time.Now().UTC().Truncate(time.Second)
	factores := make(map[string]float64, len(models.FactorNames))
	for _, name := range models.FactorNames {
		factores[name] = 0
	}
	factores["f8"] = 0.4
	return models.TaxQualification{
		ID:               id,
		BrokerID:         brokerID,
		Instrumento:      instrumento,
		Mercado:          "NASDAQ",
		Periodo:          "2024",
		TipoCalificacion: "dividendo",
		Factores:         factores,
		Monto:            100,
		EsOficial:        true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestCommitBatchInsertAndList(t *testing.T) {
	store := NewQualificationStore(newTestDB(t))
	ctx := context.Background()

	batch := []models.TaxQualification{
		sampleQualification("7-aapl-nasdaq-2024", "7", "AAPL"),
		sampleQualification("7-msft-nasdaq-2024", "7", "MSFT"),
		sampleQualification("9-aapl-nasdaq-2024", "9", "AAPL"),
	}
	require.NoError(t, store.CommitBatch(ctx, batch))

	records, err := store.ListByBroker(ctx, "7")
	require.NoError(t, err)
	require.Len(t, records, 2, "listing is scoped to the owning broker")

	got, err := store.Get(ctx, "7", "7-aapl-nasdaq-2024")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Instrumento)
	assert.Equal(t, 0.4, got.Factores["f8"])
	assert.True(t, got.EsOficial)
}

func TestCommitBatchUpsertOverwrites(t *testing.T) {
	store := NewQualificationStore(newTestDB(t))
	ctx := context.Background()

	q := sampleQualification("7-aapl-nasdaq-2024", "7", "AAPL")
	require.NoError(t, store.CommitBatch(ctx, []models.TaxQualification{q}))

	q.Monto = 999
	q.Factores["f8"] = 0.9
	q.UpdatedAt = q.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.CommitBatch(ctx, []models.TaxQualification{q}))

	records, err := store.ListByBroker(ctx, "7")
	require.NoError(t, err)
	require.Len(t, records, 1, "last write wins, no duplicate row")
	assert.Equal(t, 999.0, records[0].Monto)
	assert.Equal(t, 0.9, records[0].Factores["f8"])
}

func TestSoftDeleteAndRevival(t *testing.T) {
	store := NewQualificationStore(newTestDB(t))
	ctx := context.Background()

	q := sampleQualification("7-aapl-nasdaq-2024", "7", "AAPL")
	require.NoError(t, store.CommitBatch(ctx, []models.TaxQualification{q}))

	require.NoError(t, store.SoftDelete(ctx, "7", q.ID))

	records, err := store.ListByBroker(ctx, "7")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = store.Get(ctx, "7", q.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.SoftDelete(ctx, "7", q.ID)
	assert.ErrorIs(t, err, ErrNotFound, "a second delete finds nothing to flag")

	// Re-uploading the same record revives it.
	require.NoError(t, store.CommitBatch(ctx, []models.TaxQualification{q}))
	records, err = store.ListByBroker(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSoftDeleteScopedToBroker(t *testing.T) {
	store := NewQualificationStore(newTestDB(t))
	ctx := context.Background()

	q := sampleQualification("7-aapl-nasdaq-2024", "7", "AAPL")
	require.NoError(t, store.CommitBatch(ctx, []models.TaxQualification{q}))

	err := store.SoftDelete(ctx, "8", q.ID)
	assert.ErrorIs(t, err, ErrNotFound, "a record cannot be deleted through another broker")
}

func TestCommitBatchEmptyIsNoop(t *testing.T) {
	store := NewQualificationStore(newTestDB(t))
	require.NoError(t, store.CommitBatch(context.Background(), nil))
}
