package sale

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// maxPlaces is the precision percentages are stored with.
const maxPlaces = 6

// Allocated sums the percentages of buyers, leaving out the record except.
func Allocated(buyers []*Buyer, except uuid.UUID) decimal.Decimal {
	sum := decimal.Zero

	for _, b := range buyers {
		if b.ID == except {
			continue
		}

		sum = sum.Add(b.Percentage)
	}

	return sum
}

// CheckAllocation validates giving pct to a buyer of s. except is the record
// being edited (uuid.Nil for a new one); its current share is not counted.
func CheckAllocation(s *Sale, buyers []*Buyer, pct decimal.Decimal, except uuid.UUID) error {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage must be greater than 0 and at most 100, got %s%%", ErrInvalidAllocation, pct)
	}

	if !pct.Equal(pct.Truncate(maxPlaces)) {
		return fmt.Errorf("%w: percentage %s has more than %d decimal places", ErrInvalidAllocation, pct, maxPlaces)
	}

	others := 0

	for _, b := range buyers {
		if b.ID != except {
			others++
		}
	}

	if !s.Fractional {
		if others > 0 {
			return fmt.Errorf("%w: sale %s is not fractional and already has a buyer", ErrInvalidAllocation, s.ID)
		}

		if !pct.Equal(hundred) {
			return fmt.Errorf("%w: sale %s is not fractional, its buyer must own 100%%, got %s%%", ErrInvalidAllocation, s.ID, pct)
		}
	}

	used := Allocated(buyers, except)
	if total := used.Add(pct); total.GreaterThan(hundred) {
		return fmt.Errorf("%w: allocation would total %s%%, only %s%% available",
			ErrInvalidAllocation, total, hundred.Sub(used))
	}

	return nil
}
