package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveQualificationID(t *testing.T) {
	id := DeriveQualificationID("42", "AAPL", "NASDAQ", "2024-Q1")
	assert.Equal(t, "42-aapl-nasdaq-2024-q1", id)

	// Whitespace collapses to hyphens, punctuation is stripped.
	id = DeriveQualificationID("42", "Bono Serie B", "Bolsa de Santiago", "2024")
	assert.Equal(t, "42-bono-serie-b-bolsa-de-santiago-2024", id)

	id = DeriveQualificationID("42", "FONDO.MUTUO (A)", "OTC", "2024")
	assert.Equal(t, "42-fondomutuo-a-otc-2024", id)
}

func TestDeriveQualificationIDIsDeterministic(t *testing.T) {
	a := DeriveQualificationID("7", "AAPL", "NASDAQ", "2024")
	b := DeriveQualificationID("7", "aapl", "nasdaq", "2024")
	assert.Equal(t, a, b, "the id doubles as the idempotence key across reuploads")
}

func TestReconciliationKey(t *testing.T) {
	assert.Equal(t, "aapl|nasdaq|2024", ReconciliationKey(" AAPL ", "NASDAQ", "2024"))

	q1 := &TaxQualification{Instrumento: "AAPL", Mercado: "NASDAQ", Periodo: "2024", TipoCalificacion: "dividendo"}
	q2 := &TaxQualification{Instrumento: "aapl", Mercado: "nasdaq", Periodo: "2024", TipoCalificacion: "interes"}
	assert.Equal(t, q1.Key(), q2.Key(), "tipo_calificacion does not participate in identity")
}

func TestFactorSum(t *testing.T) {
	q := &TaxQualification{Factores: map[string]float64{"f8": 0.3, "f9": 0.2, "f19": 0.1}}
	assert.InDelta(t, 0.6, q.FactorSum(), 1e-12)

	empty := &TaxQualification{}
	assert.Equal(t, 0.0, empty.FactorSum())
}
