package validation

import (
	"strings"
	"unicode"
)

// SanitizeForFormulaInjection prepends a single quote when the value starts
// with a formula character, so spreadsheet software treats the cell as
// text. Applied to every cell of the error-report CSV export.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 {
		switch rune(trimmed[0]) {
		case '=', '+', '-', '@', '\t', '\r':
			return "'" + s
		}
	}
	return s
}

// StripUnprintable removes non-printable characters, keeping common
// whitespace.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
