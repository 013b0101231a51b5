package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/qualitax/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func TestValidateClientContentType(t *testing.T) {
	for _, ct := range []string{
		"text/csv",
		"text/csv; charset=utf-8",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/octet-stream",
	} {
		assert.NoError(t, ValidateClientContentType(ct), "content type %s should be accepted", ct)
	}

	for _, ct := range []string{"application/pdf", "image/png", "text/html"} {
		assert.Error(t, ValidateClientContentType(ct), "content type %s should be rejected", ct)
	}
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	xlsxHead := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 100)...)
	detected, err := ValidateFileContentByMagicBytes(bytes.NewReader(xlsxHead))
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", detected)

	xlsHead := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 100)...)
	detected, err = ValidateFileContentByMagicBytes(bytes.NewReader(xlsHead))
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.ms-excel", detected)

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader([]byte("instrumento,mercado,periodo\nAAPL,NASDAQ,2024\n")))
	assert.NoError(t, err, "plain CSV text passes the sniff")

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader([]byte("<html><body>no</body></html>")))
	assert.Error(t, err)
}

func TestValidateFileContentRewindsReader(t *testing.T) {
	content := []byte("instrumento,mercado\nAAPL,NASDAQ\n")
	reader := bytes.NewReader(content)

	_, err := ValidateFileContentByMagicBytes(reader)
	require.NoError(t, err)

	rest := make([]byte, len(content))
	n, _ := reader.Read(rest)
	assert.Equal(t, content, rest[:n], "the parser must see the file from the start")
}

func TestSanitizeForFormulaInjection(t *testing.T) {
	assert.Equal(t, "'=SUM(A1)", SanitizeForFormulaInjection("=SUM(A1)"))
	assert.Equal(t, "'+1", SanitizeForFormulaInjection("+1"))
	assert.Equal(t, "'-2", SanitizeForFormulaInjection("-2"))
	assert.Equal(t, "'@cmd", SanitizeForFormulaInjection("@cmd"))
	assert.Equal(t, "AAPL", SanitizeForFormulaInjection("AAPL"))
	assert.Equal(t, "", SanitizeForFormulaInjection(""))
}

func TestStripUnprintable(t *testing.T) {
	assert.Equal(t, "abc\tdef", StripUnprintable("abc\tdef"))
	assert.Equal(t, "abc", StripUnprintable("a\x00b\x1bc"))
}
