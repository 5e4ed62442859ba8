// Package money holds the fixed-point amount and calendar helpers shared by the
// plan generator, the reconciler and the progress computation.
//
// Amounts are int64 minor units (cents). Decimal strings only appear at the
// system boundary and are converted with shopspring/decimal, never float64.
package money

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount converts an exact decimal string in major units into cents.
// "1234.56" -> 123456, "10" -> 1000. More than two fractional digits is an error.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	if d.Exponent() < -2 && !d.Equal(d.Truncate(2)) {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, s)
	}

	return d.Mul(hundred).IntPart(), nil
}

// ParseEuropeanAmount handles exports that use "." for thousands and "," for decimals,
// e.g. "1.234,56" -> 123456.
func ParseEuropeanAmount(s string) (int64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	return ParseAmount(clean)
}

// FormatAmount renders cents as a decimal string with two fractional digits.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ShareOf returns round(total * pct / 100), rounding half away from zero.
func ShareOf(total int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(pct).Div(hundred).Round(0).IntPart()
}

// Percent returns round(100 * part / whole) using integer arithmetic.
// A non-positive whole yields 0.
func Percent(part, whole int64) int64 {
	if whole <= 0 || part <= 0 {
		return 0
	}

	return (200*part + whole) / (2 * whole)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days of the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayInMonth builds a date in the given month, clamping day to the month length.
func DayInMonth(year int, month time.Month, day int) time.Time {
	// Normalise month overflow first so the clamp looks at the right month.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	last := DaysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}

	if day < 1 {
		day = 1
	}

	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// AddMonths steps t forward by n calendar months, clamping the day to the
// last valid day of the target month (Jan 31 + 1 -> Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return DayInMonth(first.Year(), first.Month(), t.Day())
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
