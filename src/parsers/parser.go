package parsers

import (
	"io"
	"strings"

	"github.com/username/qualitax/backend/src/models"
)

// Parser converts one uploaded file into the ordered raw rows of its first
// (or only) sheet. A malformed or unreadable file fails the whole parse;
// parsers never return a partial row set.
type Parser interface {
	Parse(file io.Reader) ([]models.RawRow, error)
}

// ExpectedColumns is the fixed column set of a qualification upload.
var ExpectedColumns = []string{
	"instrumento", "mercado", "periodo", "tipo_calificacion",
	"f8", "f9", "f10", "f11", "f12", "f13", "f14", "f15", "f16", "f17", "f18", "f19",
	"monto", "es_oficial",
}

// normalizeHeader lowers a header cell and collapses its whitespace to
// underscores so "Tipo Calificacion" and "tipo_calificacion" address the
// same column.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// rowsToRawRows converts a raw cell matrix (header in row 0) into RawRows.
// Row numbers are offset by 2 so they match the source file as the user
// sees it: header row is line 1, first data row is line 2.
func rowsToRawRows(rows [][]string) []models.RawRow {
	if len(rows) == 0 {
		return nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
	}

	rawRows := make([]models.RawRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		fields := make(map[string]string, len(headers))
		for j, header := range headers {
			if header == "" {
				continue
			}
			if j < len(cells) {
				fields[header] = cells[j]
			} else {
				fields[header] = ""
			}
		}
		rawRows = append(rawRows, models.RawRow{Number: i + 2, Fields: fields})
	}
	return rawRows
}
