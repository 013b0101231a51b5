package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestXLSXParserParse(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Instrumento", "Mercado", "Periodo", "Monto"},
		{"AAPL", "NASDAQ", "2024", 150.5},
		{"MSFT", "NASDAQ", "2024-Q2", 99},
	})

	rows, err := NewXLSXParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "AAPL", rows[0].Fields["instrumento"])
	assert.Equal(t, "150.5", rows[0].Fields["monto"])
	assert.Equal(t, "2024-Q2", rows[1].Fields["periodo"])
}

func TestXLSXParserHeaderOnly(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Instrumento", "Mercado"},
	})

	_, err := NewXLSXParser().Parse(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestXLSXParserRejectsNonWorkbook(t *testing.T) {
	_, err := NewXLSXParser().Parse(strings.NewReader("this is not a zip archive"))
	require.Error(t, err)
}
