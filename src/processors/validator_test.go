package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/qualitax/backend/src/models"
)

func validate(row models.RawRow) []models.ValidationError {
	return ValidateRow(NormalizeRow(row), row)
}

func TestValidateRowValidRowHasNoErrors(t *testing.T) {
	assert.Empty(t, validate(baseRow()))
}

func TestValidateRowRequiredFields(t *testing.T) {
	row := baseRow()
	row.Fields["instrumento"] = "   "
	delete(row.Fields, "mercado")

	errs := validate(row)
	require.Len(t, errs, 2)

	fields := []string{errs[0].Field, errs[1].Field}
	assert.Contains(t, fields, "instrumento")
	assert.Contains(t, fields, "mercado")
	for _, e := range errs {
		assert.Equal(t, models.CategoryValidation, e.Category)
		assert.Equal(t, row.Number, e.Row)
	}
}

func TestValidateRowNegativeMonto(t *testing.T) {
	row := baseRow()
	row.Fields["monto"] = "-5"

	errs := validate(row)
	require.Len(t, errs, 1, "a negative amount yields exactly one error")
	assert.Equal(t, "monto", errs[0].Field)
	assert.Equal(t, models.CategoryValidation, errs[0].Category)
	assert.Equal(t, "El monto no puede ser negativo", errs[0].Message)
}

func TestValidateRowNonNumericMonto(t *testing.T) {
	row := baseRow()
	row.Fields["monto"] = "mil pesos"

	errs := validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, models.CategoryFormat, errs[0].Category)
}

func TestValidateRowPeriodFormat(t *testing.T) {
	for _, periodo := range []string{"2024", "2024-01", "2024-12", "2024-Q1", "2024-Q4"} {
		row := baseRow()
		row.Fields["periodo"] = periodo
		assert.Empty(t, validate(row), "periodo %s should be accepted", periodo)
	}

	for _, periodo := range []string{"2024-13", "24", "2024-Q5", "2024-00", "enero 2024", "2024/01"} {
		row := baseRow()
		row.Fields["periodo"] = periodo
		errs := validate(row)
		require.Len(t, errs, 1, "periodo %s should be rejected", periodo)
		assert.Equal(t, "periodo", errs[0].Field)
		assert.Equal(t, models.CategoryFormat, errs[0].Category)
	}
}

func TestValidateRowFactorRange(t *testing.T) {
	row := baseRow()
	row.Fields["f10"] = "1,5"

	errs := validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "f10", errs[0].Field)
	assert.Equal(t, "El factor f10 debe estar entre 0 y 1", errs[0].Message)

	row = baseRow()
	row.Fields["f11"] = "-0.01"
	errs = validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "f11", errs[0].Field)
}

func TestValidateRowFactorSumExceedsOne(t *testing.T) {
	row := baseRow()
	row.Fields["f8"] = "0.6"
	row.Fields["f9"] = "0.6"

	errs := validate(row)
	require.Len(t, errs, 1, "sum violation is a single aggregate error")
	assert.Equal(t, "factores", errs[0].Field)
	assert.Equal(t, models.CategoryFactorSum, errs[0].Category)
	assert.Contains(t, errs[0].Message, "1.200000")
}

func TestValidateRowFactorSumSkippedWhenFactorInvalid(t *testing.T) {
	// An out-of-range factor already explains the bad sum, so only the
	// per-factor error is reported.
	row := baseRow()
	row.Fields["f8"] = "2"

	errs := validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "f8", errs[0].Field)
}

func TestValidateRowFactorSumBoundary(t *testing.T) {
	// Twelve factors of 1/12 sum to 1 up to float noise and must pass.
	row := baseRow()
	for _, name := range models.FactorNames {
		row.Fields[name] = "0.0833333333333333333"
	}
	assert.Empty(t, validate(row))
}

func TestValidateRowMissingFactor(t *testing.T) {
	row := baseRow()
	row.Fields["f19"] = ""

	errs := validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "f19", errs[0].Field)
	assert.Equal(t, "El factor f19 es obligatorio", errs[0].Message)
}

func TestValidateRowCollectsMultipleErrors(t *testing.T) {
	row := baseRow()
	row.Fields["instrumento"] = ""
	row.Fields["monto"] = "-1"
	row.Fields["periodo"] = "2024-99"
	row.Fields["f12"] = "3"

	errs := validate(row)
	assert.Len(t, errs, 4, "every failure on the row is reported in one pass")
}

func TestValidPeriod(t *testing.T) {
	assert.True(t, ValidPeriod("1999"))
	assert.True(t, ValidPeriod("2024-06"))
	assert.True(t, ValidPeriod("2024-Q2"))
	assert.False(t, ValidPeriod("2024-q2"))
	assert.False(t, ValidPeriod("2024-6"))
	assert.False(t, ValidPeriod(""))
}
