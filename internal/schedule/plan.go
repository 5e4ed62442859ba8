// Package schedule generates payment plans and reconciles recorded payments
// against the calendar of dues a plan implies. Everything here is pure.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/money"
)

var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the amortization agreed for one buyer-on-sale record.
type Plan struct {
	BuyerID       uuid.UUID
	Total         int64 // amount to finance, in cents
	TermMonths    int
	MonthlyAmount int64 // derived, see Generate
	PaymentDay    int

	DownPayment     int64
	DownPaymentDate *time.Time

	FinalSettlement       bool
	FinalSettlementAmount int64
	FinalSettlementDate   *time.Time

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// PlanParams are the operator-supplied terms. The total comes from the buyer's
// committed amount, never from the caller.
type PlanParams struct {
	TermMonths      int
	PaymentDay      int
	DownPayment     int64
	DownPaymentDate *time.Time

	FinalSettlement       bool
	FinalSettlementAmount int64
	FinalSettlementDate   *time.Time
}

// Generate validates params against total and derives the monthly amount.
// The last installment absorbs the integer remainder, see LastInstallment.
func Generate(buyerID uuid.UUID, total int64, p PlanParams) (*Plan, error) {
	if p.TermMonths < 1 {
		return nil, fmt.Errorf("%w: term must be at least 1 month, got %d", ErrInvalidPlan, p.TermMonths)
	}

	if p.PaymentDay < 1 || p.PaymentDay > 31 {
		return nil, fmt.Errorf("%w: payment day must be between 1 and 31, got %d", ErrInvalidPlan, p.PaymentDay)
	}

	if p.DownPayment < 0 {
		return nil, fmt.Errorf("%w: down payment cannot be negative", ErrInvalidPlan)
	}

	if p.DownPayment > 0 && p.DownPaymentDate == nil {
		return nil, fmt.Errorf("%w: down payment of %s requires a date", ErrInvalidPlan, money.FormatAmount(p.DownPayment))
	}

	final := int64(0)

	if p.FinalSettlement {
		if p.FinalSettlementAmount <= 0 {
			return nil, fmt.Errorf("%w: an included final settlement must be positive", ErrInvalidPlan)
		}

		if p.FinalSettlementDate == nil {
			return nil, fmt.Errorf("%w: final settlement of %s requires a date", ErrInvalidPlan, money.FormatAmount(p.FinalSettlementAmount))
		}

		final = p.FinalSettlementAmount
	}

	remaining := total - p.DownPayment - final
	if remaining < 0 {
		return nil, fmt.Errorf("%w: down payment and final settlement exceed the %s to finance by %s",
			ErrInvalidPlan, money.FormatAmount(total), money.FormatAmount(-remaining))
	}

	plan := &Plan{
		BuyerID:         buyerID,
		Total:           total,
		TermMonths:      p.TermMonths,
		MonthlyAmount:   remaining / int64(p.TermMonths),
		PaymentDay:      p.PaymentDay,
		DownPayment:     p.DownPayment,
		DownPaymentDate: dateOnlyPtr(p.DownPaymentDate),
		FinalSettlement: p.FinalSettlement,
	}

	if p.FinalSettlement {
		plan.FinalSettlementAmount = final
		plan.FinalSettlementDate = dateOnlyPtr(p.FinalSettlementDate)
	}

	return plan, nil
}

// Financed is the part of the total covered by monthly installments.
func (p *Plan) Financed() int64 {
	financed := p.Total - p.DownPayment
	if p.FinalSettlement {
		financed -= p.FinalSettlementAmount
	}

	return financed
}

// LastInstallment is the final monthly amount, which carries the rounding remainder.
func (p *Plan) LastInstallment() int64 {
	return p.Financed() - p.MonthlyAmount*int64(p.TermMonths-1)
}

// Installment returns the amount due for installment i (1-based).
func (p *Plan) Installment(i int) int64 {
	if i == p.TermMonths {
		return p.LastInstallment()
	}

	return p.MonthlyAmount
}

// Sum adds every scheduled amount; it always equals Total for a generated plan.
func (p *Plan) Sum() int64 {
	sum := p.DownPayment
	for i := 1; i <= p.TermMonths; i++ {
		sum += p.Installment(i)
	}

	if p.FinalSettlement {
		sum += p.FinalSettlementAmount
	}

	return sum
}

// Params returns the terms the plan was generated from.
func (p *Plan) Params() PlanParams {
	return PlanParams{
		TermMonths:            p.TermMonths,
		PaymentDay:            p.PaymentDay,
		DownPayment:           p.DownPayment,
		DownPaymentDate:       p.DownPaymentDate,
		FinalSettlement:       p.FinalSettlement,
		FinalSettlementAmount: p.FinalSettlementAmount,
		FinalSettlementDate:   p.FinalSettlementDate,
	}
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	return new(money.DateOnly(*t))
}
