// Package response holds the JSON shapes returned by the v1 API. Amounts are
// reported as integer cents with a decimal rendering alongside; percentages
// are decimal strings.
package response

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

const dateLayout = time.DateOnly

type Sale struct {
	ID                uuid.UUID  `json:"id"`
	UnitID            uuid.UUID  `json:"unit_id"`
	TotalPrice        int64      `json:"total_price"`
	TotalPriceDecimal string     `json:"total_price_decimal"`
	Fractional        bool       `json:"fractional"`
	State             sale.State `json:"state"`
	Notes             string     `json:"notes,omitempty"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func FromSale(s *sale.Sale) Sale {
	return Sale{
		ID:                s.ID,
		UnitID:            s.UnitID,
		TotalPrice:        s.TotalPrice,
		TotalPriceDecimal: money.FormatAmount(s.TotalPrice),
		Fractional:        s.Fractional,
		State:             s.State,
		Notes:             s.Notes,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

type Buyer struct {
	ID                     uuid.UUID  `json:"id"`
	SaleID                 uuid.UUID  `json:"sale_id"`
	PartyID                uuid.UUID  `json:"party_id"`
	Percentage             string     `json:"percentage"`
	CommittedAmount        int64      `json:"committed_amount"`
	CommittedAmountDecimal string     `json:"committed_amount_decimal"`
	SellerID               *uuid.UUID `json:"seller_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

func FromBuyer(b *sale.Buyer) Buyer {
	return Buyer{
		ID:                     b.ID,
		SaleID:                 b.SaleID,
		PartyID:                b.PartyID,
		Percentage:             b.Percentage.String(),
		CommittedAmount:        b.CommittedAmount,
		CommittedAmountDecimal: money.FormatAmount(b.CommittedAmount),
		SellerID:               b.SellerID,
		CreatedAt:              b.CreatedAt,
		UpdatedAt:              b.UpdatedAt,
	}
}

func FromBuyers(bs []*sale.Buyer) []Buyer {
	out := make([]Buyer, len(bs))
	for i, b := range bs {
		out[i] = FromBuyer(b)
	}

	return out
}

type Payment struct {
	ID             uuid.UUID      `json:"id"`
	BuyerID        uuid.UUID      `json:"buyer_id"`
	Amount         int64          `json:"amount"`
	AmountDecimal  string         `json:"amount_decimal"`
	PaidOn         string         `json:"paid_on"`
	Method         payment.Method `json:"method"`
	Reference      string         `json:"reference,omitempty"`
	ProofURL       string         `json:"proof_url,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	State          payment.State  `json:"state"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

func FromPayment(p *payment.Payment) Payment {
	return Payment{
		ID:             p.ID,
		BuyerID:        p.BuyerID,
		Amount:         p.Amount,
		AmountDecimal:  money.FormatAmount(p.Amount),
		PaidOn:         p.PaidOn.Format(dateLayout),
		Method:         p.Method,
		Reference:      p.Reference,
		ProofURL:       p.ProofURL,
		Notes:          p.Notes,
		State:          p.State,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func FromPayments(ps []*payment.Payment) []Payment {
	out := make([]Payment, len(ps))
	for i, p := range ps {
		out[i] = FromPayment(p)
	}

	return out
}

type Plan struct {
	BuyerID               uuid.UUID `json:"buyer_id"`
	Total                 int64     `json:"total"`
	TermMonths            int       `json:"term_months"`
	MonthlyAmount         int64     `json:"monthly_amount"`
	LastInstallment       int64     `json:"last_installment"`
	PaymentDay            int       `json:"payment_day"`
	DownPayment           int64     `json:"down_payment"`
	DownPaymentDate       *string   `json:"down_payment_date,omitempty"`
	FinalSettlement       bool      `json:"final_settlement"`
	FinalSettlementAmount int64     `json:"final_settlement_amount"`
	FinalSettlementDate   *string   `json:"final_settlement_date,omitempty"`
	Committed             int64     `json:"committed"`
	Stale                 bool      `json:"stale"`
}

func FromPlan(p *schedule.Plan) Plan {
	return Plan{
		BuyerID:               p.BuyerID,
		Total:                 p.Total,
		TermMonths:            p.TermMonths,
		MonthlyAmount:         p.MonthlyAmount,
		LastInstallment:       p.LastInstallment(),
		PaymentDay:            p.PaymentDay,
		DownPayment:           p.DownPayment,
		DownPaymentDate:       formatDate(p.DownPaymentDate),
		FinalSettlement:       p.FinalSettlement,
		FinalSettlementAmount: p.FinalSettlementAmount,
		FinalSettlementDate:   formatDate(p.FinalSettlementDate),
		Committed:             p.Total,
	}
}

func FromPlanView(v *sale.PlanView) Plan {
	out := FromPlan(v.Plan)
	out.Committed = v.Committed
	out.Stale = v.Stale

	return out
}

type Due struct {
	Seq         int             `json:"seq"`
	DueDate     string          `json:"due_date"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	Status      schedule.Status `json:"status"`
	PaymentID   *uuid.UUID      `json:"payment_id,omitempty"`
}

func FromDues(ds []schedule.Due) []Due {
	out := make([]Due, len(ds))
	for i, d := range ds {
		out[i] = Due{
			Seq:         d.Seq,
			DueDate:     d.DueDate.Format(dateLayout),
			Amount:      d.Amount,
			Description: d.Description,
			Status:      d.Status,
			PaymentID:   d.PaymentID,
		}
	}

	return out
}

type BuyerProgress struct {
	BuyerID    uuid.UUID `json:"buyer_id"`
	PartyID    uuid.UUID `json:"party_id"`
	Percentage string    `json:"percentage"`
	Committed  int64     `json:"committed"`
	Paid       int64     `json:"paid"`
	Percent    int64     `json:"percent"`
}

type Progress struct {
	SaleID   uuid.UUID       `json:"sale_id"`
	State    sale.State      `json:"state"`
	Total    int64           `json:"total"`
	Paid     int64           `json:"paid"`
	Percent  int64           `json:"percent"`
	Complete bool            `json:"complete"`
	Buyers   []BuyerProgress `json:"buyers"`
}

func FromProgress(p *sale.Progress) Progress {
	out := Progress{
		SaleID:   p.SaleID,
		State:    p.State,
		Total:    p.Total,
		Paid:     p.Paid,
		Percent:  p.Percent,
		Complete: p.Complete(),
		Buyers:   make([]BuyerProgress, len(p.Buyers)),
	}

	for i, b := range p.Buyers {
		out.Buyers[i] = BuyerProgress{
			BuyerID:    b.BuyerID,
			PartyID:    b.PartyID,
			Percentage: b.Percentage.String(),
			Committed:  b.Committed,
			Paid:       b.Paid,
			Percent:    b.Percent,
		}
	}

	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}

	return new(t.Format(dateLayout))
}
