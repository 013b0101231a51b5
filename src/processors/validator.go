package processors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/qualitax/backend/src/models"
)

// factorSumEpsilon absorbs float accumulation noise when checking the
// aggregate invariant sum(f8..f19) <= 1.
const factorSumEpsilon = 1e-9

var requiredFields = []string{"instrumento", "mercado", "periodo", "tipo_calificacion", "monto"}

var (
	periodYear    = regexp.MustCompile(`^\d{4}$`)
	periodMonth   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	periodQuarter = regexp.MustCompile(`^\d{4}-Q[1-4]$`)
)

// ValidPeriod reports whether a fiscal period matches one of the accepted
// shapes: YYYY, YYYY-MM or YYYY-Qn.
func ValidPeriod(periodo string) bool {
	return periodYear.MatchString(periodo) ||
		periodMonth.MatchString(periodo) ||
		periodQuarter.MatchString(periodo)
}

// ValidateRow checks one normalized row against the business rules and
// returns every failure it finds. Errors are collected, not short-circuited,
// so the user gets a complete per-row report in a single pass. The raw row
// is consulted for presence and numeric-type checks because normalization
// already defaulted bad cells to zero values.
func ValidateRow(q *models.TaxQualification, raw models.RawRow) []models.ValidationError {
	var errs []models.ValidationError

	addErr := func(field, value, message string, category models.ErrorCategory) {
		errs = append(errs, models.ValidationError{
			Row:      raw.Number,
			Field:    field,
			Value:    value,
			Message:  message,
			Category: category,
		})
	}

	for _, field := range requiredFields {
		if strings.TrimSpace(raw.Fields[field]) == "" {
			addErr(field, "", fmt.Sprintf("El campo %s es obligatorio", field), models.CategoryValidation)
		}
	}

	if rawMonto := strings.TrimSpace(raw.Fields["monto"]); rawMonto != "" {
		if _, err := strconv.ParseFloat(strings.ReplaceAll(rawMonto, ",", "."), 64); err != nil {
			addErr("monto", rawMonto, "El monto debe ser un valor numérico", models.CategoryFormat)
		} else if q.Monto < 0 {
			addErr("monto", rawMonto, "El monto no puede ser negativo", models.CategoryValidation)
		}
	}

	if periodo := strings.TrimSpace(raw.Fields["periodo"]); periodo != "" && !ValidPeriod(periodo) {
		addErr("periodo", periodo, "El período debe tener formato YYYY, YYYY-MM o YYYY-Qn", models.CategoryFormat)
	}

	factorErrors := false
	for _, name := range models.FactorNames {
		rawVal := strings.TrimSpace(raw.Fields[name])
		if rawVal == "" {
			addErr(name, "", fmt.Sprintf("El factor %s es obligatorio", name), models.CategoryValidation)
			factorErrors = true
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(rawVal, ",", "."), 64); err != nil {
			addErr(name, rawVal, fmt.Sprintf("El factor %s debe ser numérico", name), models.CategoryFormat)
			factorErrors = true
			continue
		}
		if v := q.Factores[name]; v < 0 || v > 1 {
			addErr(name, rawVal, fmt.Sprintf("El factor %s debe estar entre 0 y 1", name), models.CategoryValidation)
			factorErrors = true
		}
	}

	// The aggregate check only makes sense when every individual factor is
	// valid; otherwise the sum would double-report the same bad cells.
	if !factorErrors {
		if sum := q.FactorSum(); sum > 1+factorSumEpsilon {
			addErr("factores", strconv.FormatFloat(sum, 'f', -1, 64),
				fmt.Sprintf("La suma de los factores F8-F19 (%.6f) excede 1", sum), models.CategoryFactorSum)
		}
	}

	return errs
}
