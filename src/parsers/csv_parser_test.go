package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParserParse(t *testing.T) {
	input := "Instrumento,Mercado,Periodo,Tipo Calificacion,monto\n" +
		"AAPL,NASDAQ,2024,dividendo,100\n" +
		"MSFT,NASDAQ,2024-Q1,interes,200\n"

	rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number, "first data row is line 2, matching what the user sees")
	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, "AAPL", rows[0].Fields["instrumento"])
	assert.Equal(t, "dividendo", rows[0].Fields["tipo_calificacion"], "headers are lowered and whitespace becomes underscores")
	assert.Equal(t, "200", rows[1].Fields["monto"])
}

func TestCSVParserShortRowsPadMissingCells(t *testing.T) {
	input := "instrumento,mercado,periodo\nAAPL,NASDAQ\n"

	rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Fields["periodo"])
}

func TestCSVParserEmptyFile(t *testing.T) {
	_, err := NewCSVParser().Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestCSVParserHeaderOnly(t *testing.T) {
	_, err := NewCSVParser().Parse(strings.NewReader("instrumento,mercado\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestCSVParserMalformedQuotes(t *testing.T) {
	_, err := NewCSVParser().Parse(strings.NewReader("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
}

func TestGetParser(t *testing.T) {
	for _, name := range []string{"carga.csv", "CARGA.CSV", "datos.xlsx", "antiguo.xls"} {
		p, err := GetParser(name)
		require.NoError(t, err, "extension of %s should be supported", name)
		assert.NotNil(t, p)
	}

	_, err := GetParser("datos.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = GetParser("sin_extension")
	require.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "tipo_calificacion", normalizeHeader("  Tipo   Calificacion "))
	assert.Equal(t, "f8", normalizeHeader("F8"))
	assert.Equal(t, "", normalizeHeader("   "))
}
