package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GetParser selects a parser by file extension. Unsupported extensions are
// rejected before any row processing begins.
func GetParser(filename string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return NewCSVParser(), nil
	case ".xlsx":
		return NewXLSXParser(), nil
	case ".xls":
		return NewXLSParser(), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s (expected .csv, .xlsx or .xls)", filepath.Ext(filename))
	}
}
