package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/qualitax/backend/src/logger"
)

// AllowedClientContentTypes lists the client-declared MIME types accepted
// for a qualification upload (CSV plus the two Excel formats).
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/octet-stream": true, // generic fallback; magic bytes decide
}

// ValidateClientContentType checks the Content-Type header declared by the
// client before any bytes are inspected.
func ValidateClientContentType(contentType string) error {
	normalized := strings.ToLower(strings.Split(contentType, ";")[0])
	if !AllowedClientContentTypes[strings.TrimSpace(normalized)] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("file type '%s' is not allowed; expected CSV or Excel", contentType)
	}
	return nil
}

// xlsx files are zip containers; legacy xls files are OLE2 compound
// documents. Both have fixed signatures in the first bytes.
var (
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ValidateFileContentByMagicBytes sniffs the actual file content and
// rejects anything that is not plausibly CSV text, an xlsx container or a
// legacy xls document. The reader is rewound afterwards so the parser sees
// the full file.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	head := buffer[:n]
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	case bytes.HasPrefix(head, ole2Magic):
		return "application/vnd.ms-excel", nil
	}

	detected := http.DetectContentType(head)
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	allowedDetected := map[string]bool{
		"text/plain":               true,
		"text/csv":                 true,
		"application/csv":          true,
		"application/octet-stream": true, // strict parsing catches non-CSV later
	}
	if !allowedDetected[detected] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detected)
		return detected, fmt.Errorf("detected file content type '%s' is not consistent with a CSV or Excel file", detected)
	}

	return detected, nil
}
