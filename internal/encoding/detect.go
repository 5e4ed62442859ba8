// Package encoding normalises uploaded payment sheets to UTF-8 before they
// reach the CSV reader. Spanish bank portals still export Latin-1 or
// Windows-1252 files, and spreadsheets saved on Windows often add a BOM.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of the input is inspected before decoding starts.
const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// fallback is used when nothing better can be determined. It is a superset
// of Latin-1 for the printable range, so accented Spanish text survives.
var fallback encoding.Encoding = charmap.Windows1252

// charsets maps chardet results to decoders. Anything not listed falls back
// to Windows-1252.
var charsets = map[string]encoding.Encoding{
	"ISO-8859-1":   charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"ISO-8859-15":  charmap.ISO8859_15,
	"ISO-8859-9":   charmap.ISO8859_9,
}

// NewUTF8Reader returns a reader that yields r decoded to UTF-8.
//
// Detection order:
//  1. BOM (UTF-8 is stripped, UTF-16 LE/BE is decoded)
//  2. valid UTF-8 passes through untouched
//  3. chardet heuristics
//  4. Windows-1252
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if validPrefix(buf, len(buf) == sniffSize) {
		return br, nil
	}

	return transform.NewReader(br, Detect(buf).NewDecoder()), nil
}

// Detect guesses the single-byte charset of a non UTF-8 sample.
func Detect(sample []byte) encoding.Encoding {
	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return fallback
	}

	if enc, ok := charsets[result.Charset]; ok {
		return enc
	}

	return fallback
}

// validPrefix reports whether buf is UTF-8. When the sample was cut at the
// peek limit a multi-byte rune may be split at the end, which is tolerated.
func validPrefix(buf []byte, truncated bool) bool {
	if utf8.Valid(buf) {
		return true
	}

	if !truncated {
		return false
	}

	for cut := 1; cut < utf8.UTFMax && cut < len(buf); cut++ {
		if utf8.Valid(buf[:len(buf)-cut]) {
			return true
		}
	}

	return false
}
