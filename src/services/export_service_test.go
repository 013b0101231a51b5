package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/qualitax/backend/src/models"
)

func TestWriteErrorReportCSV(t *testing.T) {
	result := &models.BulkUploadResult{
		Failed: []models.ProcessedRecord{
			{
				Row:    3,
				Status: models.StatusError,
				Errors: []models.ValidationError{
					{Row: 3, Field: "monto", Value: "-5", Message: "El monto no puede ser negativo", Category: models.CategoryValidation},
					{Row: 3, Field: "periodo", Value: "2024-13", Message: "El período debe tener formato YYYY, YYYY-MM o YYYY-Qn", Category: models.CategoryFormat},
				},
			},
			{
				Row:    7,
				Status: models.StatusError,
				Errors: []models.ValidationError{
					{Row: 7, Field: "instrumento", Value: "=CMD()", Message: "El campo instrumento es obligatorio", Category: models.CategoryValidation},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExportService(nil).WriteErrorReportCSV(&buf, result))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one line per (row, field) failure")

	assert.Equal(t, []string{"Fila", "Campo", "Error", "Valor"}, rows[0])
	assert.Equal(t, []string{"3", "monto", "El monto no puede ser negativo", "'-5"}, rows[1],
		"a leading minus is also a formula trigger and gets escaped")
	assert.Equal(t, "7", rows[3][0])
	assert.Equal(t, "'=CMD()", rows[3][3], "cell values starting with a formula trigger are escaped")
}

func TestWriteErrorReportCSVEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExportService(nil).WriteErrorReportCSV(&buf, &models.BulkUploadResult{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "an error-free upload still exports the header")
}
