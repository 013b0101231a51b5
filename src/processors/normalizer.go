package processors

import (
	"strconv"
	"strings"

	"github.com/username/qualitax/backend/src/models"
)

// NormalizeRow maps one raw file row (localized column names, string cells)
// into a partial TaxQualification. Normalization is deliberately lenient:
// unparseable numbers become 0 and missing strings become "" so that the
// validator, not the normalizer, is the single place that rejects bad input.
func NormalizeRow(row models.RawRow) *models.TaxQualification {
	q := &models.TaxQualification{
		Instrumento:      strings.TrimSpace(row.Fields["instrumento"]),
		Mercado:          strings.TrimSpace(row.Fields["mercado"]),
		Periodo:          strings.TrimSpace(row.Fields["periodo"]),
		TipoCalificacion: strings.TrimSpace(row.Fields["tipo_calificacion"]),
		Monto:            ParseLocaleFloat(row.Fields["monto"]),
		EsOficial:        ParseBool(row.Fields["es_oficial"]),
		Factores:         make(map[string]float64, len(models.FactorNames)),
	}
	for _, name := range models.FactorNames {
		q.Factores[name] = ParseLocaleFloat(row.Fields[name])
	}
	return q
}

// ParseLocaleFloat parses a numeric cell accepting both '.' and ',' as the
// decimal separator. Empty or unparseable input yields 0.
func ParseLocaleFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseBool accepts "true" (any case) and "1"; everything else is false.
func ParseBool(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}
