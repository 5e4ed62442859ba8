package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/plazos/internal/encoding"
)

func readAll(t *testing.T, input []byte) string {
	t.Helper()

	r, err := encoding.NewUTF8Reader(bytes.NewReader(input))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(got)
}

func TestNewUTF8Reader_UTF8Passthrough(t *testing.T) {
	input := "Fecha de pago;Monto;Método\n10/01/2024;1500.00;Depósito\n"
	assert.Equal(t, input, readAll(t, []byte(input)))
}

func TestNewUTF8Reader_Windows1252(t *testing.T) {
	// "Método;Año\n" with é = 0xE9 and ñ = 0xF1.
	input := []byte{'M', 0xE9, 't', 'o', 'd', 'o', ';', 'A', 0xF1, 'o', '\n'}
	assert.Equal(t, "Método;Año\n", readAll(t, input))
}

func TestNewUTF8Reader_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Fecha;Importe\n")...)
	assert.Equal(t, "Fecha;Importe\n", readAll(t, input))
}

func TestNewUTF8Reader_UTF16LE(t *testing.T) {
	input, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("Fecha;Importe\n"))
	require.NoError(t, err)

	assert.Equal(t, "Fecha;Importe\n", readAll(t, input))
}

func TestNewUTF8Reader_LongUTF8SplitAtPeekBoundary(t *testing.T) {
	// Pad so the two-byte "ó" straddles the 4096 byte sniff window.
	input := strings.Repeat("a", 4095) + "ó\n"
	assert.Equal(t, input, readAll(t, []byte(input)))
}

func TestNewUTF8Reader_LongLatin1(t *testing.T) {
	line := "10/01/2024;1.500,00;Transferencia recibida de Muñoz Peña\n"

	latin1, err := charmap.Windows1252.NewEncoder().String(strings.Repeat(line, 200))
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat(line, 200), readAll(t, []byte(latin1)))
}

func TestNewUTF8Reader_Empty(t *testing.T) {
	assert.Empty(t, readAll(t, nil))
}
