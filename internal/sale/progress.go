package sale

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// Progress is how much of a sale has been paid.
type Progress struct {
	SaleID  uuid.UUID
	State   State
	Total   int64
	Paid    int64
	Percent int64 // may exceed 100
	Buyers  []BuyerProgress
}

// BuyerProgress is one owner's payments against the share they committed to.
type BuyerProgress struct {
	BuyerID    uuid.UUID
	PartyID    uuid.UUID
	Percentage decimal.Decimal
	Committed  int64
	Paid       int64
	Percent    int64
}

// Complete reports whether the sale is paid off.
func (p Progress) Complete() bool {
	return p.Percent >= 100
}

// ComputeProgress reduces payments to the amount paid. Rejected payments never
// count; registered and verified ones do.
func ComputeProgress(s *Sale, buyers []*Buyer, payments []*payment.Payment) Progress {
	paidBy := make(map[uuid.UUID]int64, len(buyers))

	var paid int64

	for _, p := range payments {
		if !p.Counts() {
			continue
		}

		paid += p.Amount
		paidBy[p.BuyerID] += p.Amount
	}

	prog := Progress{
		SaleID:  s.ID,
		State:   s.State,
		Total:   s.TotalPrice,
		Paid:    paid,
		Percent: money.Percent(paid, s.TotalPrice),
		Buyers:  make([]BuyerProgress, 0, len(buyers)),
	}

	for _, b := range buyers {
		prog.Buyers = append(prog.Buyers, BuyerProgress{
			BuyerID:    b.ID,
			PartyID:    b.PartyID,
			Percentage: b.Percentage,
			Committed:  b.CommittedAmount,
			Paid:       paidBy[b.ID],
			Percent:    money.Percent(paidBy[b.ID], b.CommittedAmount),
		})
	}

	return prog
}
