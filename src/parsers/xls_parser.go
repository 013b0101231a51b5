package parsers

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/shakinm/xlsReader/xls"

	"github.com/username/qualitax/backend/src/models"
)

// XLSParser reads legacy BIFF workbooks that some brokers still export.
type XLSParser struct{}

func NewXLSParser() *XLSParser {
	return &XLSParser{}
}

func (p *XLSParser) Parse(file io.Reader) ([]models.RawRow, error) {
	// The BIFF reader needs random access, so the upload is buffered first.
	// Uploads are capped well below the configured size limit, so this stays
	// within a few megabytes.
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer XLS file: %w", err)
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLS workbook: %w", err)
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, errors.New("the workbook has no sheets")
	}

	var rows [][]string
	for _, xlsRow := range sheet.GetRows() {
		var cells []string
		for _, col := range xlsRow.GetCols() {
			cells = append(cells, col.GetString())
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil, errors.New("the first sheet has no data rows")
	}

	return rowsToRawRows(rows), nil
}
