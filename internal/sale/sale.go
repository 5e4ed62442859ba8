// Package sale tracks how a property sale, possibly split among fractional
// owners, is paid off: ownership allocation, payment plans, payments and the
// automatic completion of the sale once it is fully paid.
package sale

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// State represents the lifecycle state of a sale.
type State string

const (
	StateInProgress State = "en_proceso"
	StateCompleted  State = "completada"
	StateCancelled  State = "cancelada"
)

func (s State) Valid() bool {
	switch s {
	case StateInProgress, StateCompleted, StateCancelled:
		return true
	}

	return false
}

// UnitState is the inventory state of the unit being sold.
type UnitState string

const (
	UnitAvailable UnitState = "disponible"
	UnitSold      UnitState = "vendido"
)

// Sale represents the sale of one inventory unit.
type Sale struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	UnitID     uuid.UUID
	TotalPrice int64 // Amount in cents
	Fractional bool
	State      State
	Notes      string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// CanTransition reports whether next is reachable. Both completada and
// cancelada are terminal.
func (s *Sale) CanTransition(next State) bool {
	return s.State == StateInProgress && (next == StateCompleted || next == StateCancelled)
}

func (s *Sale) Transition(next State) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown sale state %q", ErrInvalidTransition, next)
	}

	if !s.CanTransition(next) {
		return fmt.Errorf("%w: sale %s is %s and cannot become %s", ErrInvalidTransition, s.ID, s.State, next)
	}

	s.State = next

	return nil
}

// mayChange fails for cancelled sales, which accept no new buyers, plans or payments.
func (s *Sale) mayChange(what string) error {
	if s.State == StateCancelled {
		return fmt.Errorf("%w: sale %s is cancelled, cannot %s", ErrInvalidTransition, s.ID, what)
	}

	return nil
}

// Buyer is one buyer-on-sale record: the share a party owns and owes.
type Buyer struct {
	ID              uuid.UUID
	SaleID          uuid.UUID
	PartyID         uuid.UUID
	Percentage      decimal.Decimal
	CommittedAmount int64 // ShareOf(sale total, Percentage)
	SellerID        *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type StartParams struct {
	UnitID     uuid.UUID
	TotalPrice int64
	Fractional bool
	Notes      string
}

// UpdateParams edits a sale; nil fields are left untouched.
type UpdateParams struct {
	TotalPrice *int64
	Fractional *bool
	Notes      *string
}

type AttachParams struct {
	PartyID    uuid.UUID
	Percentage decimal.Decimal
	SellerID   *uuid.UUID
}

// PaymentFilter narrows ListSalePayments. A nil State lists every payment.
type PaymentFilter struct {
	State *payment.State
}
