// Package importer turns payment spreadsheets into registered payments.
//
// An upload is decoded to UTF-8, its header row is matched against the known
// column profiles and every data row becomes a payment.RegisterParams with a
// deterministic idempotency key, so importing the same file twice is a no-op.
package importer

import (
	"errors"
	"io"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

var (
	ErrUnknownFormat = errors.New("unknown import format")
	ErrInvalidRow    = errors.New("invalid row")
)

// Format names a column profile. The zero value means auto-detect.
type Format string

const (
	FormatAuto   Format = ""
	FormatBank   Format = "banco"
	FormatManual Format = "manual"
)

// Row is one importable line of a sheet.
type Row struct {
	Line   int // 1-based line in the file
	Params payment.RegisterParams
}

// Batch is the parsed content of a sheet.
type Batch struct {
	Format Format
	Rows   []Row
}

type Importer interface {
	Parse(r io.Reader, format Format) (*Batch, error)
}
