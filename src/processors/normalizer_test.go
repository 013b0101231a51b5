package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/qualitax/backend/src/models"
)

func baseRow() models.RawRow {
	fields := map[string]string{
		"instrumento":       "  AAPL ",
		"mercado":           "NASDAQ",
		"periodo":           "2024",
		"tipo_calificacion": "dividendo",
		"monto":             "1234,56",
		"es_oficial":        "TRUE",
	}
	for _, name := range models.FactorNames {
		fields[name] = "0"
	}
	fields["f8"] = "0,25"
	fields["f9"] = "0.5"
	return models.RawRow{Number: 2, Fields: fields}
}

func TestNormalizeRow(t *testing.T) {
	q := NormalizeRow(baseRow())

	assert.Equal(t, "AAPL", q.Instrumento, "string cells are trimmed")
	assert.Equal(t, "NASDAQ", q.Mercado)
	assert.Equal(t, "2024", q.Periodo)
	assert.Equal(t, "dividendo", q.TipoCalificacion)
	assert.Equal(t, 1234.56, q.Monto, "comma decimal separator is accepted")
	assert.True(t, q.EsOficial)
	assert.Equal(t, 0.25, q.Factores["f8"])
	assert.Equal(t, 0.5, q.Factores["f9"])
	assert.Len(t, q.Factores, len(models.FactorNames))
}

func TestNormalizeRowDefaultsBadCellsToZero(t *testing.T) {
	row := baseRow()
	row.Fields["monto"] = "abc"
	row.Fields["f8"] = "no-numerico"
	delete(row.Fields, "f9")

	q := NormalizeRow(row)

	assert.Equal(t, 0.0, q.Monto)
	assert.Equal(t, 0.0, q.Factores["f8"])
	assert.Equal(t, 0.0, q.Factores["f9"])
}

func TestParseLocaleFloat(t *testing.T) {
	assert.Equal(t, 0.15, ParseLocaleFloat("0,15"))
	assert.Equal(t, 0.15, ParseLocaleFloat("0.15"))
	assert.Equal(t, 0.0, ParseLocaleFloat(""))
	assert.Equal(t, 0.0, ParseLocaleFloat("   "))
	assert.Equal(t, 0.0, ParseLocaleFloat("x1"))
	assert.Equal(t, -3.0, ParseLocaleFloat(" -3 "))
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("true"))
	assert.True(t, ParseBool("TRUE"))
	assert.True(t, ParseBool(" True "))
	assert.True(t, ParseBool("1"))
	assert.False(t, ParseBool("0"))
	assert.False(t, ParseBool("si"))
	assert.False(t, ParseBool(""))
}
