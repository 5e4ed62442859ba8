package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=sale

// Reader holds the queries available both inside and outside a transaction.
type Reader interface {
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	GetBuyer(ctx context.Context, id uuid.UUID) (*Buyer, error)
	ListBuyers(ctx context.Context, saleID uuid.UUID) ([]*Buyer, error)
	GetPlan(ctx context.Context, buyerID uuid.UUID) (*schedule.Plan, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindPaymentByKey(ctx context.Context, buyerID uuid.UUID, key string) (*payment.Payment, error)
	ListPayments(ctx context.Context, buyerID uuid.UUID) ([]*payment.Payment, error)
	ListSalePayments(ctx context.Context, saleID uuid.UUID, filter PaymentFilter) ([]*payment.Payment, error)
}

type Repository interface {
	Reader
	CreateSale(ctx context.Context, s *Sale) error

	// Begin opens a transaction holding the sale row lock. Every write to the
	// sale, its buyers, plans and payments goes through the returned Tx.
	Begin(ctx context.Context, saleID uuid.UUID) (Tx, error)
}

type Tx interface {
	Reader
	UpdateSale(ctx context.Context, s *Sale) error

	CreateBuyer(ctx context.Context, b *Buyer) error
	UpdateBuyer(ctx context.Context, b *Buyer) error
	DeleteBuyer(ctx context.Context, id uuid.UUID) error

	UpsertPlan(ctx context.Context, p *schedule.Plan) error

	CreatePayment(ctx context.Context, p *payment.Payment) error
	UpdatePayment(ctx context.Context, p *payment.Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error

	SetUnitState(ctx context.Context, unitID uuid.UUID, state UnitState) error
	RecomputeAggregates(ctx context.Context, unitID uuid.UUID) error

	Commit() error
	Rollback() error
}

// IdempotencyCache remembers which payment an idempotency key produced. The
// database stays authoritative; a cache miss or failure only costs a query.
type IdempotencyCache interface {
	Lookup(ctx context.Context, buyerID uuid.UUID, key string) (uuid.UUID, bool, error)
	Remember(ctx context.Context, buyerID uuid.UUID, key string, paymentID uuid.UUID) error
}

type Service struct {
	repo  Repository
	cache IdempotencyCache
	now   func() time.Time
}

type Option func(*Service)

func WithIdempotencyCache(c IdempotencyCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the source of "today" used to classify dues.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PlanView is a stored plan plus whether it still matches the buyer's share.
type PlanView struct {
	*schedule.Plan
	Committed int64
	Stale     bool
}

func (s *Service) StartSale(ctx context.Context, params StartParams) (*Sale, error) {
	if params.TotalPrice <= 0 {
		return nil, fmt.Errorf("%w: total price must be positive, got %d", ErrInvalidSale, params.TotalPrice)
	}

	if params.UnitID == uuid.Nil {
		return nil, fmt.Errorf("%w: unit is required", ErrInvalidSale)
	}

	sl := &Sale{
		UnitID:     params.UnitID,
		TotalPrice: params.TotalPrice,
		Fractional: params.Fractional,
		State:      StateInProgress,
		Notes:      params.Notes,
	}
	if err := s.repo.CreateSale(ctx, sl); err != nil {
		return nil, err
	}

	return sl, nil
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// UpdateSale edits price, fractional flag or notes. A price change recomputes
// every buyer's committed amount and may complete the sale.
func (s *Service) UpdateSale(ctx context.Context, id uuid.UUID, params UpdateParams) (*Sale, error) {
	var out *Sale

	err := s.inTx(ctx, id, func(tx Tx) error {
		sl, err := tx.GetSale(ctx, id)
		if err != nil {
			return err
		}

		if params.TotalPrice != nil || params.Fractional != nil {
			if sl.State != StateInProgress {
				return fmt.Errorf("%w: sale %s is %s, price and ownership are frozen", ErrInvalidTransition, sl.ID, sl.State)
			}
		}

		buyers, err := tx.ListBuyers(ctx, id)
		if err != nil {
			return fmt.Errorf("list buyers: %w", err)
		}

		if params.Fractional != nil && !*params.Fractional {
			if len(buyers) > 1 {
				return fmt.Errorf("%w: sale %s has %d buyers and cannot stop being fractional", ErrInvalidAllocation, sl.ID, len(buyers))
			}

			if len(buyers) == 1 && !buyers[0].Percentage.Equal(hundred) {
				return fmt.Errorf("%w: sole buyer owns %s%%, a non-fractional sale needs 100%%", ErrInvalidAllocation, buyers[0].Percentage)
			}
		}

		if params.Fractional != nil {
			sl.Fractional = *params.Fractional
		}

		if params.Notes != nil {
			sl.Notes = *params.Notes
		}

		if params.TotalPrice != nil {
			if *params.TotalPrice <= 0 {
				return fmt.Errorf("%w: total price must be positive, got %d", ErrInvalidSale, *params.TotalPrice)
			}

			sl.TotalPrice = *params.TotalPrice

			for _, b := range buyers {
				b.CommittedAmount = money.ShareOf(sl.TotalPrice, b.Percentage)
				if err := tx.UpdateBuyer(ctx, b); err != nil {
					return fmt.Errorf("update buyer: %w", err)
				}
			}
		}

		if err := tx.UpdateSale(ctx, sl); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		if err := s.settle(ctx, tx, sl); err != nil {
			return err
		}

		out = sl

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Service) AttachBuyer(ctx context.Context, saleID uuid.UUID, params AttachParams) (*Buyer, error) {
	if params.PartyID == uuid.Nil {
		return nil, fmt.Errorf("%w: buyer party is required", ErrInvalidAllocation)
	}

	var out *Buyer

	err := s.inTx(ctx, saleID, func(tx Tx) error {
		sl, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}

		if err := sl.mayChange("attach buyers"); err != nil {
			return err
		}

		buyers, err := tx.ListBuyers(ctx, saleID)
		if err != nil {
			return fmt.Errorf("list buyers: %w", err)
		}

		if err := CheckAllocation(sl, buyers, params.Percentage, uuid.Nil); err != nil {
			return err
		}

		b := &Buyer{
			SaleID:          saleID,
			PartyID:         params.PartyID,
			Percentage:      params.Percentage,
			CommittedAmount: money.ShareOf(sl.TotalPrice, params.Percentage),
			SellerID:        params.SellerID,
		}
		if err := tx.CreateBuyer(ctx, b); err != nil {
			return fmt.Errorf("create buyer: %w", err)
		}

		out = b

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// UpdatePercentage changes a buyer's share. An existing plan is left as is and
// reported stale by GetPlan until it is upserted again.
func (s *Service) UpdatePercentage(ctx context.Context, buyerID uuid.UUID, pct decimal.Decimal) (*Buyer, error) {
	saleID, err := s.saleOfBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var out *Buyer

	err = s.inTx(ctx, saleID, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, buyerID)
		if err != nil {
			return err
		}

		sl, err := tx.GetSale(ctx, b.SaleID)
		if err != nil {
			return err
		}

		if err := sl.mayChange("change ownership"); err != nil {
			return err
		}

		buyers, err := tx.ListBuyers(ctx, sl.ID)
		if err != nil {
			return fmt.Errorf("list buyers: %w", err)
		}

		if err := CheckAllocation(sl, buyers, pct, b.ID); err != nil {
			return err
		}

		b.Percentage = pct
		b.CommittedAmount = money.ShareOf(sl.TotalPrice, pct)

		if err := tx.UpdateBuyer(ctx, b); err != nil {
			return fmt.Errorf("update buyer: %w", err)
		}

		out = b

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// DetachBuyer removes a buyer together with its plan and payments, unless any
// of those payments has been verified.
func (s *Service) DetachBuyer(ctx context.Context, buyerID uuid.UUID) error {
	saleID, err := s.saleOfBuyer(ctx, buyerID)
	if err != nil {
		return err
	}

	return s.inTx(ctx, saleID, func(tx Tx) error {
		payments, err := tx.ListPayments(ctx, buyerID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}

		for _, p := range payments {
			if p.State == payment.StateVerified {
				return fmt.Errorf("%w: payment %s of %s is verified", ErrHasConfirmedPayments, p.ID, money.FormatAmount(p.Amount))
			}
		}

		if err := tx.DeleteBuyer(ctx, buyerID); err != nil {
			return fmt.Errorf("delete buyer: %w", err)
		}

		slog.InfoContext(ctx, "buyer detached", "sale_id", saleID, "buyer_id", buyerID, "payments_removed", len(payments))

		return nil
	})
}

func (s *Service) GetBuyer(ctx context.Context, id uuid.UUID) (*Buyer, error) {
	return s.repo.GetBuyer(ctx, id)
}

func (s *Service) ListBuyers(ctx context.Context, saleID uuid.UUID) ([]*Buyer, error) {
	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}

	return s.repo.ListBuyers(ctx, saleID)
}

// UpsertPlan generates the buyer's plan from their committed amount and
// replaces any previous one.
func (s *Service) UpsertPlan(ctx context.Context, buyerID uuid.UUID, params schedule.PlanParams) (*schedule.Plan, error) {
	saleID, err := s.saleOfBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var out *schedule.Plan

	err = s.inTx(ctx, saleID, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, buyerID)
		if err != nil {
			return err
		}

		sl, err := tx.GetSale(ctx, b.SaleID)
		if err != nil {
			return err
		}

		if err := sl.mayChange("set a payment plan"); err != nil {
			return err
		}

		plan, err := schedule.Generate(b.ID, b.CommittedAmount, params)
		if err != nil {
			return err
		}

		if err := tx.UpsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("upsert plan: %w", err)
		}

		out = plan

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Service) GetPlan(ctx context.Context, buyerID uuid.UUID) (*PlanView, error) {
	b, err := s.repo.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	plan, err := s.repo.GetPlan(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	return &PlanView{
		Plan:      plan,
		Committed: b.CommittedAmount,
		Stale:     plan.Total != b.CommittedAmount,
	}, nil
}

// ListCalendar derives the buyer's dues and matches their payments against them.
func (s *Service) ListCalendar(ctx context.Context, buyerID uuid.UUID) ([]schedule.Due, error) {
	plan, err := s.repo.GetPlan(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return schedule.Calendar(plan, payments, s.now()), nil
}

// RegisterPayment records a payment as registered. Calls repeating a
// non-empty idempotency key for the same buyer return the original payment.
func (s *Service) RegisterPayment(ctx context.Context, buyerID uuid.UUID, params payment.RegisterParams) (*payment.Payment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if p := s.cachedPayment(ctx, buyerID, params.IdempotencyKey); p != nil {
		return p, nil
	}

	saleID, err := s.saleOfBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var out *payment.Payment

	err = s.inTx(ctx, saleID, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, buyerID)
		if err != nil {
			return err
		}

		if params.IdempotencyKey != "" {
			existing, err := tx.FindPaymentByKey(ctx, b.ID, params.IdempotencyKey)
			if err == nil {
				out = existing
				return nil
			}

			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("find payment by key: %w", err)
			}
		}

		sl, err := tx.GetSale(ctx, b.SaleID)
		if err != nil {
			return err
		}

		if err := sl.mayChange("register payments"); err != nil {
			return err
		}

		p := &payment.Payment{
			BuyerID:        b.ID,
			Amount:         params.Amount,
			PaidOn:         money.DateOnly(params.PaidOn),
			Method:         params.Method,
			Reference:      params.Reference,
			ProofURL:       params.ProofURL,
			Notes:          params.Notes,
			State:          payment.StateRegistered,
			IdempotencyKey: params.IdempotencyKey,
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if err := s.settle(ctx, tx, sl); err != nil {
			return err
		}

		out = p

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && params.IdempotencyKey != "" {
		if err := s.cache.Remember(ctx, buyerID, params.IdempotencyKey, out.ID); err != nil {
			slog.WarnContext(ctx, "failed to cache idempotency key", "buyer_id", buyerID, "error", err)
		}
	}

	return out, nil
}

// UpdatePayment edits a payment that is still registered.
func (s *Service) UpdatePayment(ctx context.Context, id uuid.UUID, params payment.UpdateParams) (*payment.Payment, error) {
	return s.withPayment(ctx, id, func(tx Tx, sl *Sale, p *payment.Payment) error {
		if err := sl.mayChange("edit payments"); err != nil {
			return err
		}

		if err := params.Apply(p); err != nil {
			return err
		}

		p.PaidOn = money.DateOnly(p.PaidOn)

		return tx.UpdatePayment(ctx, p)
	})
}

// SetPaymentReviewState moves a payment through the review workflow and
// re-evaluates the sale's progress.
func (s *Service) SetPaymentReviewState(ctx context.Context, id uuid.UUID, next payment.State) (*payment.Payment, error) {
	return s.withPayment(ctx, id, func(tx Tx, sl *Sale, p *payment.Payment) error {
		prev := p.State
		if err := p.Transition(next); err != nil {
			return err
		}

		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}

		slog.InfoContext(ctx, "payment reviewed", "payment_id", p.ID, "from", prev, "to", next)

		return nil
	})
}

func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	_, err := s.withPayment(ctx, id, func(tx Tx, _ *Sale, p *payment.Payment) error {
		if !p.MayDelete() {
			return fmt.Errorf("%w: payment %s is %s and cannot be deleted", ErrInvalidTransition, p.ID, p.State)
		}

		return tx.DeletePayment(ctx, p.ID)
	})

	return err
}

func (s *Service) ListPayments(ctx context.Context, buyerID uuid.UUID) ([]*payment.Payment, error) {
	if _, err := s.repo.GetBuyer(ctx, buyerID); err != nil {
		return nil, err
	}

	return s.repo.ListPayments(ctx, buyerID)
}

func (s *Service) ListSalePayments(ctx context.Context, saleID uuid.UUID, filter PaymentFilter) ([]*payment.Payment, error) {
	if filter.State != nil && !filter.State.Valid() {
		return nil, fmt.Errorf("%w: unknown review state %q", ErrInvalidPayment, *filter.State)
	}

	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}

	return s.repo.ListSalePayments(ctx, saleID, filter)
}

func (s *Service) GetProgress(ctx context.Context, saleID uuid.UUID) (*Progress, error) {
	prog, err := progressOf(ctx, s.repo, saleID)
	if err != nil {
		return nil, err
	}

	return &prog, nil
}

// ForceSaleState closes a sale by hand. Only en_proceso sales can be forced,
// and forcing completada marks the unit sold just like automatic completion.
func (s *Service) ForceSaleState(ctx context.Context, id uuid.UUID, next State) (*Sale, error) {
	var out *Sale

	err := s.inTx(ctx, id, func(tx Tx) error {
		sl, err := tx.GetSale(ctx, id)
		if err != nil {
			return err
		}

		if err := sl.Transition(next); err != nil {
			return err
		}

		if err := tx.UpdateSale(ctx, sl); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		if next == StateCompleted {
			if err := tx.SetUnitState(ctx, sl.UnitID, UnitSold); err != nil {
				return fmt.Errorf("set unit state: %w", err)
			}
		}

		if err := tx.RecomputeAggregates(ctx, sl.UnitID); err != nil {
			return fmt.Errorf("recompute aggregates: %w", err)
		}

		slog.InfoContext(ctx, "sale state forced", "sale_id", sl.ID, "state", next)

		out = sl

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// settle completes an en_proceso sale once its progress reaches 100%. A sale
// that is already closed is never reopened.
func (s *Service) settle(ctx context.Context, tx Tx, sl *Sale) error {
	if sl.State != StateInProgress {
		return nil
	}

	prog, err := progressOf(ctx, tx, sl.ID)
	if err != nil {
		return err
	}

	if !prog.Complete() {
		return nil
	}

	sl.State = StateCompleted

	if err := tx.UpdateSale(ctx, sl); err != nil {
		return fmt.Errorf("complete sale: %w", err)
	}

	if err := tx.SetUnitState(ctx, sl.UnitID, UnitSold); err != nil {
		return fmt.Errorf("set unit state: %w", err)
	}

	if err := tx.RecomputeAggregates(ctx, sl.UnitID); err != nil {
		return fmt.Errorf("recompute aggregates: %w", err)
	}

	slog.InfoContext(ctx, "sale completed", "sale_id", sl.ID, "unit_id", sl.UnitID, "percent", prog.Percent)

	return nil
}

func progressOf(ctx context.Context, r Reader, saleID uuid.UUID) (Progress, error) {
	sl, err := r.GetSale(ctx, saleID)
	if err != nil {
		return Progress{}, err
	}

	buyers, err := r.ListBuyers(ctx, saleID)
	if err != nil {
		return Progress{}, fmt.Errorf("list buyers: %w", err)
	}

	payments, err := r.ListSalePayments(ctx, saleID, PaymentFilter{})
	if err != nil {
		return Progress{}, fmt.Errorf("list sale payments: %w", err)
	}

	return ComputeProgress(sl, buyers, payments), nil
}

// withPayment runs fn on a payment inside its sale's transaction and settles
// the sale afterwards.
func (s *Service) withPayment(ctx context.Context, id uuid.UUID, fn func(Tx, *Sale, *payment.Payment) error) (*payment.Payment, error) {
	p0, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	saleID, err := s.saleOfBuyer(ctx, p0.BuyerID)
	if err != nil {
		return nil, err
	}

	var out *payment.Payment

	err = s.inTx(ctx, saleID, func(tx Tx) error {
		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}

		sl, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}

		if err := fn(tx, sl, p); err != nil {
			return err
		}

		if err := s.settle(ctx, tx, sl); err != nil {
			return err
		}

		out = p

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Service) saleOfBuyer(ctx context.Context, buyerID uuid.UUID) (uuid.UUID, error) {
	b, err := s.repo.GetBuyer(ctx, buyerID)
	if err != nil {
		return uuid.Nil, err
	}

	return b.SaleID, nil
}

func (s *Service) cachedPayment(ctx context.Context, buyerID uuid.UUID, key string) *payment.Payment {
	if s.cache == nil || key == "" {
		return nil
	}

	id, ok, err := s.cache.Lookup(ctx, buyerID, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to look up idempotency key", "buyer_id", buyerID, "error", err)
		return nil
	}

	if !ok {
		return nil
	}

	p, err := s.repo.GetPayment(ctx, id)
	if err != nil || p.BuyerID != buyerID {
		return nil
	}

	return p
}

// inTx runs fn in a sale transaction, retrying once when it lost a race.
func (s *Service) inTx(ctx context.Context, saleID uuid.UUID, fn func(Tx) error) error {
	err := s.attempt(ctx, saleID, fn)
	if errors.Is(err, ErrConcurrentModification) {
		slog.WarnContext(ctx, "retrying after concurrent modification", "sale_id", saleID, "error", err)

		err = s.attempt(ctx, saleID, fn)
	}

	return err
}

func (s *Service) attempt(ctx context.Context, saleID uuid.UUID, fn func(Tx) error) error {
	tx, err := s.repo.Begin(ctx, saleID)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}
