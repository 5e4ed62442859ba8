package schedule

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// Status of a calendarized due.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusLate    Status = "atrasado"
)

// Due is one derived line of the expected schedule. It is never stored.
type Due struct {
	Seq         int
	DueDate     time.Time
	Amount      int64
	Description string
	Status      Status
	PaymentID   *uuid.UUID
}

// Dues expands the plan into its expected lines without matching payments.
// Seq 0 is the down payment, 1..TermMonths the installments, TermMonths+1 the
// final settlement. Installments are dated from the down payment date, or from
// today when the plan has none.
func Dues(p *Plan, today time.Time) []Due {
	dues := make([]Due, 0, p.TermMonths+2)

	if p.DownPayment > 0 && p.DownPaymentDate != nil {
		dues = append(dues, Due{
			Seq:         0,
			DueDate:     money.DateOnly(*p.DownPaymentDate),
			Amount:      p.DownPayment,
			Description: "Enganche",
		})
	}

	base := money.DateOnly(today)
	if p.DownPaymentDate != nil {
		base = money.DateOnly(*p.DownPaymentDate)
	}

	for i := 1; i <= p.TermMonths; i++ {
		month := money.AddMonths(time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC), i)

		dues = append(dues, Due{
			Seq:         i,
			DueDate:     money.DayInMonth(month.Year(), month.Month(), p.PaymentDay),
			Amount:      p.Installment(i),
			Description: fmt.Sprintf("Mensualidad %d de %d", i, p.TermMonths),
		})
	}

	if p.FinalSettlement && p.FinalSettlementDate != nil {
		dues = append(dues, Due{
			Seq:         p.TermMonths + 1,
			DueDate:     money.DateOnly(*p.FinalSettlementDate),
			Amount:      p.FinalSettlementAmount,
			Description: "Finiquito",
		})
	}

	return dues
}

// Calendar reconciles payments against the plan's dues.
//
// Each due, in sequence order, consumes the first unused non-rejected payment
// (creation order) whose amount is exactly equal and whose date falls in the
// same calendar month. Matching is greedy per due: two equal payments in one
// month are attributed to the earliest due that fits, not optimally.
func Calendar(p *Plan, payments []*payment.Payment, today time.Time) []Due {
	candidates := make([]*payment.Payment, 0, len(payments))
	for _, pay := range payments {
		if pay.Counts() {
			candidates = append(candidates, pay)
		}
	}

	slices.SortStableFunc(candidates, func(a, b *payment.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	used := make([]bool, len(candidates))
	today = money.DateOnly(today)
	dues := Dues(p, today)

	for i := range dues {
		d := &dues[i]

		for j, pay := range candidates {
			if used[j] || pay.Amount != d.Amount || !money.SameMonth(pay.PaidOn, d.DueDate) {
				continue
			}

			used[j] = true
			d.PaymentID = new(pay.ID)

			break
		}

		switch {
		case d.PaymentID != nil:
			d.Status = StatusPaid
		case d.DueDate.Before(today):
			d.Status = StatusLate
		default:
			d.Status = StatusPending
		}
	}

	return dues
}
