package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	enc "github.com/MrJamesThe3rd/plazos/internal/encoding"
	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// delimiters are tried in order; Spanish exports use ';', hand-made sheets often ','.
var delimiters = []rune{';', ',', '\t'}

// Parser reads payment sheets and auto-detects their column profile.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader, format Format) (*Batch, error) {
	if format != FormatAuto && profileFor(format) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	for _, comma := range delimiters {
		sheet, err := readSheet(data, comma)
		if err != nil {
			continue
		}

		profile, cols, headerIdx := detectProfile(sheet.rows, format)
		if profile == nil {
			continue
		}

		rows, err := parseRows(profile, cols, sheet.rows[headerIdx+1:], sheet.lines[headerIdx+1:])
		if err != nil {
			return nil, err
		}

		return &Batch{Format: profile.Format, Rows: rows}, nil
	}

	return nil, fmt.Errorf("%w: no header matches the banco or manual columns", ErrUnknownFormat)
}

type sheet struct {
	rows  [][]string
	lines []int
}

func readSheet(data []byte, comma rune) (*sheet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var s sheet

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return &s, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		s.rows = append(s.rows, rec)
		s.lines = append(s.lines, line)
	}
}

// colIndex maps lower-cased column names to their index in the row.
type colIndex map[string]int

// detectProfile scans rows for a header that matches a known profile, or
// only the forced one when format is set.
func detectProfile(rows [][]string, format Format) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if format != FormatAuto && profiles[i].Format != format {
				continue
			}

			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

func parseRows(p *Profile, cols colIndex, rows [][]string, lines []int) ([]Row, error) {
	var (
		out  []Row
		seen = make(map[uint64]int)
	)

	for i, row := range rows {
		line := lines[i]

		date, ok := parseDate(p, cellValue(row, cols, p.DateCol))
		if !ok {
			continue
		}

		raw := cellValue(row, cols, p.AmountCol)
		if raw == "" {
			continue
		}

		cents, err := parseAmount(p.Amounts, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
		}

		if cents <= 0 {
			if p.CreditsOnly {
				continue
			}

			return nil, fmt.Errorf("%w: line %d: amount must be positive, got %s", ErrInvalidRow, line, raw)
		}

		method, ok := parseMethod(cellValue(row, cols, p.MethodCol), p.DefaultMethod)
		if !ok {
			return nil, fmt.Errorf("%w: line %d: unknown method %q", ErrInvalidRow, line, cellValue(row, cols, p.MethodCol))
		}

		params := payment.RegisterParams{
			Amount:    cents,
			PaidOn:    date,
			Method:    method,
			Reference: cellValue(row, cols, p.RefCol),
			Notes:     cellValue(row, cols, p.NotesCol),
		}

		h := rowHash(p.Format, params)
		params.IdempotencyKey = importKey(h, seen[h])
		seen[h]++

		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
		}

		out = append(out, Row{Line: line, Params: params})
	}

	return out, nil
}

// parseDate returns false for empty or unparseable cells (titles, totals, footers).
func parseDate(p *Profile, s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range p.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func parseAmount(style amountStyle, s string) (int64, error) {
	s = strings.NewReplacer("€", "", "$", "", "EUR", "", "MXN", "", " ", "", "\u00a0", "").Replace(s)

	if style == amountEuropean {
		return money.ParseEuropeanAmount(s)
	}

	return money.ParseAmount(strings.ReplaceAll(s, ",", ""))
}

// cellValue returns the trimmed cell of the named column, or "" when the
// column is not part of the profile or the row is short.
func cellValue(row []string, cols colIndex, name string) string {
	if name == "" {
		return ""
	}

	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
