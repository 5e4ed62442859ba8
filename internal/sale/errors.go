package sale

import (
	"errors"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidSale            = errors.New("invalid sale")
	ErrInvalidAllocation      = errors.New("invalid allocation")
	ErrHasConfirmedPayments   = errors.New("buyer has verified payments")
	ErrConcurrentModification = errors.New("concurrent modification")

	ErrInvalidPlan       = schedule.ErrInvalidPlan
	ErrInvalidTransition = payment.ErrInvalidTransition
	ErrInvalidPayment    = payment.ErrInvalidPayment
)
