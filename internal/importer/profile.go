package importer

import (
	"strings"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// amountStyle determines how the amount column is written.
type amountStyle int

const (
	// amountEuropean is "1.234,56", as Spanish bank portals export it.
	amountEuropean amountStyle = iota
	// amountPlain is "1234.56" or "1,234.56", optionally with a currency sign.
	amountPlain
)

// Profile describes the column layout of a known payment sheet.
type Profile struct {
	Format      Format
	DateCol     string
	AmountCol   string
	MethodCol   string // optional; rows default to DefaultMethod
	RefCol      string
	NotesCol    string
	DateLayouts []string
	Amounts     amountStyle
	// CreditsOnly skips non-positive rows, which in a bank statement are
	// outgoing movements rather than payments received.
	CreditsOnly   bool
	DefaultMethod payment.Method
}

// requiredCols returns the column names that must be present for this profile to match.
func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.AmountCol}

	for _, c := range []string{p.MethodCol, p.RefCol, p.NotesCol} {
		if c != "" {
			cols = append(cols, c)
		}
	}

	return cols
}

// profiles is tried in order during detection; more specific layouts first.
var profiles = []Profile{
	{
		Format:        FormatManual,
		DateCol:       "fecha de pago",
		AmountCol:     "monto",
		MethodCol:     "método",
		RefCol:        "referencia",
		NotesCol:      "notas",
		DateLayouts:   []string{"2006-01-02", "02/01/2006", "2/1/2006"},
		Amounts:       amountPlain,
		DefaultMethod: payment.MethodTransfer,
	},
	{
		Format:        FormatBank,
		DateCol:       "fecha",
		AmountCol:     "importe",
		RefCol:        "referencia",
		NotesCol:      "concepto",
		DateLayouts:   []string{"02/01/2006", "02-01-2006", "2006-01-02"},
		Amounts:       amountEuropean,
		CreditsOnly:   true,
		DefaultMethod: payment.MethodTransfer,
	},
}

func profileFor(f Format) *Profile {
	for i := range profiles {
		if profiles[i].Format == f {
			return &profiles[i]
		}
	}

	return nil
}

// methods maps the spellings found in hand-kept sheets to payment methods.
var methods = map[string]payment.Method{
	"transferencia": payment.MethodTransfer,
	"spei":          payment.MethodTransfer,
	"efectivo":      payment.MethodCash,
	"cheque":        payment.MethodCheck,
	"tarjeta":       payment.MethodCard,
	"deposito":      payment.MethodDeposit,
	"depósito":      payment.MethodDeposit,
}

func parseMethod(s string, fallback payment.Method) (payment.Method, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback, true
	}

	m, ok := methods[s]

	return m, ok
}
