package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FactorNames lists the twelve regulatory tax factors, in column order.
// Each factor must be a number in [0,1] and the twelve must jointly sum to at most 1.
var FactorNames = []string{"f8", "f9", "f10", "f11", "f12", "f13", "f14", "f15", "f16", "f17", "f18", "f19"}

// TaxQualification is one tax-treatment record for an
// instrument/market/period tuple owned by a single broker (corredor).
type TaxQualification struct {
	ID               string             `json:"id"`
	BrokerID         string             `json:"brokerId"`
	Instrumento      string             `json:"instrumento"`
	Mercado          string             `json:"mercado"`
	Periodo          string             `json:"periodo"`
	TipoCalificacion string             `json:"tipoCalificacion"`
	Factores         map[string]float64 `json:"factores"`
	Monto            float64            `json:"monto"`
	EsOficial        bool               `json:"esOficial"`
	Deleted          bool               `json:"-"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// FactorSum returns the sum of the twelve factor values. Missing factors
// count as zero; the validator is responsible for flagging them.
func (q *TaxQualification) FactorSum() float64 {
	var sum float64
	for _, name := range FactorNames {
		sum += q.Factores[name]
	}
	return sum
}

// DeriveQualificationID builds the deterministic record id from the owning
// broker and the identifying tuple: lowercased, whitespace collapsed to
// hyphens, everything else non-alphanumeric stripped. The derived id doubles
// as the idempotence key for repeated uploads of the same file.
func DeriveQualificationID(brokerID, instrumento, mercado, periodo string) string {
	raw := fmt.Sprintf("%s-%s-%s-%s", brokerID, instrumento, mercado, periodo)
	raw = strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReconciliationKey is the case-insensitive lookup key used to decide
// whether an incoming row corresponds to an existing record. The
// qualification type is deliberately excluded: two rows differing only in
// tipo_calificacion are the same logical record.
func ReconciliationKey(instrumento, mercado, periodo string) string {
	return strings.ToLower(strings.TrimSpace(instrumento)) + "|" +
		strings.ToLower(strings.TrimSpace(mercado)) + "|" +
		strings.ToLower(strings.TrimSpace(periodo))
}

// Key returns the reconciliation key of the record itself.
func (q *TaxQualification) Key() string {
	return ReconciliationKey(q.Instrumento, q.Mercado, q.Periodo)
}
