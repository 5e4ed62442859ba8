package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidPayment    = errors.New("invalid payment")
)

// State is the review state of a recorded payment.
type State string

const (
	StateRegistered State = "registered"
	StateVerified   State = "verified"
	StateRejected   State = "rejected"
)

func (s State) Valid() bool {
	switch s {
	case StateRegistered, StateVerified, StateRejected:
		return true
	}

	return false
}

// Method is how the money was transferred.
type Method string

const (
	MethodTransfer Method = "transferencia"
	MethodCash     Method = "efectivo"
	MethodCheck    Method = "cheque"
	MethodCard     Method = "tarjeta"
	MethodDeposit  Method = "deposito"
)

func (m Method) Valid() bool {
	switch m {
	case MethodTransfer, MethodCash, MethodCheck, MethodCard, MethodDeposit:
		return true
	}

	return false
}

// Payment is a money transfer recorded against a buyer-on-sale record.
type Payment struct {
	ID             uuid.UUID
	BuyerID        uuid.UUID // buyer-on-sale record
	Amount         int64     // Amount in cents
	PaidOn         time.Time
	Method         Method
	Reference      string
	ProofURL       string
	Notes          string
	State          State
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Counts reports whether the payment contributes to the amount paid.
func (p *Payment) Counts() bool {
	return p.State != StateRejected
}

// CanTransition reports whether the review workflow allows moving to next.
// registered -> verified | rejected; rejected -> registered (re-register).
func (p *Payment) CanTransition(next State) bool {
	switch p.State {
	case StateRegistered:
		return next == StateVerified || next == StateRejected
	case StateRejected:
		return next == StateRegistered
	}

	return false
}

// Transition moves the payment to next or fails with ErrInvalidTransition.
func (p *Payment) Transition(next State) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown review state %q", ErrInvalidTransition, next)
	}

	if !p.CanTransition(next) {
		return fmt.Errorf("%w: payment %s is %s and cannot become %s", ErrInvalidTransition, p.ID, p.State, next)
	}

	p.State = next

	return nil
}

// MayDelete reports whether the payment can still be removed.
func (p *Payment) MayDelete() bool {
	return p.State == StateRegistered
}

// MayEdit reports whether amount, date and metadata can still change.
func (p *Payment) MayEdit() bool {
	return p.State == StateRegistered
}

type RegisterParams struct {
	Amount         int64
	PaidOn         time.Time
	Method         Method
	Reference      string
	ProofURL       string
	Notes          string
	IdempotencyKey string
}

// Validate checks the write-time invariants of a new or edited payment.
func (p RegisterParams) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidPayment, p.Amount)
	}

	if p.PaidOn.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrInvalidPayment)
	}

	if !p.Method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, p.Method)
	}

	return nil
}

// UpdateParams edits a registered payment; nil fields are left untouched.
type UpdateParams struct {
	Amount    *int64
	PaidOn    *time.Time
	Method    *Method
	Reference *string
	ProofURL  *string
	Notes     *string
}

// Apply copies the set fields onto p and validates the result.
func (u UpdateParams) Apply(p *Payment) error {
	if !p.MayEdit() {
		return fmt.Errorf("%w: payment %s is %s and can no longer be edited", ErrInvalidTransition, p.ID, p.State)
	}

	if u.Amount != nil {
		p.Amount = *u.Amount
	}

	if u.PaidOn != nil {
		p.PaidOn = *u.PaidOn
	}

	if u.Method != nil {
		p.Method = *u.Method
	}

	if u.Reference != nil {
		p.Reference = *u.Reference
	}

	if u.ProofURL != nil {
		p.ProofURL = *u.ProofURL
	}

	if u.Notes != nil {
		p.Notes = *u.Notes
	}

	return RegisterParams{Amount: p.Amount, PaidOn: p.PaidOn, Method: p.Method}.Validate()
}
