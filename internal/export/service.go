// Package export renders a buyer's account statement: plan summary,
// calendar of dues, recorded payments and totals, as CSV or as a zip bundle
// with the proof-of-payment documents attached.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

// Source is the read side a statement is built from; sale.Service satisfies it.
type Source interface {
	GetSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error)
	GetBuyer(ctx context.Context, id uuid.UUID) (*sale.Buyer, error)
	GetPlan(ctx context.Context, buyerID uuid.UUID) (*sale.PlanView, error)
	ListCalendar(ctx context.Context, buyerID uuid.UUID) ([]schedule.Due, error)
	ListPayments(ctx context.Context, buyerID uuid.UUID) ([]*payment.Payment, error)
}

// Names resolves party ids to display names; party.Directory satisfies it.
type Names interface {
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
}

// Statement is everything printed on a buyer's account statement.
type Statement struct {
	Sale      *sale.Sale
	Buyer     *sale.Buyer
	BuyerName string
	Plan      *sale.PlanView // nil when no plan was agreed yet
	Calendar  []schedule.Due
	Payments  []*payment.Payment
	Paid      int64 // non-rejected payments
	Pending   int64 // committed minus paid, never negative
	IssuedAt  time.Time
}

// Service builds statements and bundles.
type Service struct {
	source     Source
	names      Names
	client     *http.Client
	proofToken string
	now        func() time.Time
}

// NewService creates a new export Service. names may be nil, in which case
// buyers are printed by party id.
func NewService(source Source, names Names, proofToken string) *Service {
	return &Service{
		source:     source,
		names:      names,
		client:     &http.Client{Timeout: 30 * time.Second},
		proofToken: proofToken,
		now:        time.Now,
	}
}

// Statement collects the statement of one buyer-on-sale record.
func (s *Service) Statement(ctx context.Context, buyerID uuid.UUID) (*Statement, error) {
	b, err := s.source.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("getting buyer: %w", err)
	}

	sl, err := s.source.GetSale(ctx, b.SaleID)
	if err != nil {
		return nil, fmt.Errorf("getting sale: %w", err)
	}

	st := &Statement{
		Sale:      sl,
		Buyer:     b,
		BuyerName: s.displayName(ctx, b.PartyID),
		IssuedAt:  s.now().UTC(),
	}

	plan, err := s.source.GetPlan(ctx, buyerID)

	switch {
	case err == nil:
		st.Plan = plan

		st.Calendar, err = s.source.ListCalendar(ctx, buyerID)
		if err != nil {
			return nil, fmt.Errorf("listing calendar: %w", err)
		}
	case !errors.Is(err, sale.ErrNotFound):
		return nil, fmt.Errorf("getting plan: %w", err)
	}

	st.Payments, err = s.source.ListPayments(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}

	for _, p := range st.Payments {
		if p.Counts() {
			st.Paid += p.Amount
		}
	}

	st.Pending = max(b.CommittedAmount-st.Paid, 0)

	return st, nil
}

func (s *Service) displayName(ctx context.Context, partyID uuid.UUID) string {
	if s.names == nil {
		return partyID.String()
	}

	name, err := s.names.DisplayName(ctx, partyID)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve party name", "party_id", partyID, "error", err)
		return partyID.String()
	}

	return name
}
