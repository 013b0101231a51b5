package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/username/qualitax/backend/src/models"
)

type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(file io.Reader) ([]models.RawRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("the file is empty")
	}
	if len(rows) < 2 {
		return nil, errors.New("the file has a header but no data rows")
	}

	return rowsToRawRows(rows), nil
}
