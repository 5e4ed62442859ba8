package sale_test

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

// memState is an in-memory database. Rows are stored by value so callers
// never alias stored data.
type memState struct {
	sales      map[uuid.UUID]sale.Sale
	buyers     map[uuid.UUID]sale.Buyer
	plans      map[uuid.UUID]schedule.Plan
	payments   map[uuid.UUID]payment.Payment
	units      map[uuid.UUID]sale.UnitState
	recomputes map[uuid.UUID]int
	seq        int
}

func newMemState() *memState {
	return &memState{
		sales:      map[uuid.UUID]sale.Sale{},
		buyers:     map[uuid.UUID]sale.Buyer{},
		plans:      map[uuid.UUID]schedule.Plan{},
		payments:   map[uuid.UUID]payment.Payment{},
		units:      map[uuid.UUID]sale.UnitState{},
		recomputes: map[uuid.UUID]int{},
	}
}

func (m *memState) clone() *memState {
	return &memState{
		sales:      maps.Clone(m.sales),
		buyers:     maps.Clone(m.buyers),
		plans:      maps.Clone(m.plans),
		payments:   maps.Clone(m.payments),
		units:      maps.Clone(m.units),
		recomputes: maps.Clone(m.recomputes),
		seq:        m.seq,
	}
}

// stamp returns strictly increasing creation times.
func (m *memState) stamp() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

type memReader struct {
	st *memState
}

func (r memReader) GetSale(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	s, ok := r.st.sales[id]
	if !ok {
		return nil, sale.ErrNotFound
	}

	return &s, nil
}

func (r memReader) GetBuyer(_ context.Context, id uuid.UUID) (*sale.Buyer, error) {
	b, ok := r.st.buyers[id]
	if !ok {
		return nil, sale.ErrNotFound
	}

	return &b, nil
}

func (r memReader) ListBuyers(_ context.Context, saleID uuid.UUID) ([]*sale.Buyer, error) {
	var out []*sale.Buyer

	for _, b := range r.st.buyers {
		if b.SaleID == saleID {
			out = append(out, &b)
		}
	}

	slices.SortFunc(out, func(a, b *sale.Buyer) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out, nil
}

func (r memReader) GetPlan(_ context.Context, buyerID uuid.UUID) (*schedule.Plan, error) {
	p, ok := r.st.plans[buyerID]
	if !ok {
		return nil, sale.ErrNotFound
	}

	return &p, nil
}

func (r memReader) GetPayment(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return nil, sale.ErrNotFound
	}

	return &p, nil
}

func (r memReader) FindPaymentByKey(_ context.Context, buyerID uuid.UUID, key string) (*payment.Payment, error) {
	for _, p := range r.st.payments {
		if p.BuyerID == buyerID && p.IdempotencyKey == key {
			return &p, nil
		}
	}

	return nil, sale.ErrNotFound
}

func (r memReader) ListPayments(_ context.Context, buyerID uuid.UUID) ([]*payment.Payment, error) {
	return r.payments(func(p payment.Payment) bool { return p.BuyerID == buyerID }), nil
}

func (r memReader) ListSalePayments(_ context.Context, saleID uuid.UUID, filter sale.PaymentFilter) ([]*payment.Payment, error) {
	return r.payments(func(p payment.Payment) bool {
		b, ok := r.st.buyers[p.BuyerID]
		if !ok || b.SaleID != saleID {
			return false
		}

		return filter.State == nil || p.State == *filter.State
	}), nil
}

func (r memReader) payments(keep func(payment.Payment) bool) []*payment.Payment {
	var out []*payment.Payment

	for _, p := range r.st.payments {
		if keep(p) {
			out = append(out, &p)
		}
	}

	slices.SortFunc(out, func(a, b *payment.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out
}

type memRepo struct {
	memReader
	mu     sync.Mutex
	begins int
}

func newMemRepo() *memRepo {
	return &memRepo{memReader: memReader{st: newMemState()}}
}

func (r *memRepo) CreateSale(_ context.Context, s *sale.Sale) error {
	s.ID = uuid.New()
	s.CompanyID = uuid.MustParse("00000000-0000-0000-0000-00000000c0de")
	s.Version = 1
	s.CreatedAt = r.st.stamp()
	r.st.sales[s.ID] = *s

	if _, ok := r.st.units[s.UnitID]; !ok {
		r.st.units[s.UnitID] = sale.UnitAvailable
	}

	return nil
}

// Begin serializes transactions like the row lock does and works on a copy
// that only replaces the committed state on Commit.
func (r *memRepo) Begin(_ context.Context, saleID uuid.UUID) (sale.Tx, error) {
	if _, ok := r.st.sales[saleID]; !ok {
		return nil, sale.ErrNotFound
	}

	r.mu.Lock()
	r.begins++

	return &memTx{memReader: memReader{st: r.st.clone()}, repo: r}, nil
}

type memTx struct {
	memReader
	repo *memRepo
	done bool
}

func (t *memTx) UpdateSale(_ context.Context, s *sale.Sale) error {
	cur, ok := t.st.sales[s.ID]
	if !ok {
		return sale.ErrNotFound
	}

	if cur.Version != s.Version {
		return sale.ErrConcurrentModification
	}

	s.Version++
	t.st.sales[s.ID] = *s

	return nil
}

func (t *memTx) CreateBuyer(_ context.Context, b *sale.Buyer) error {
	b.ID = uuid.New()
	b.CreatedAt = t.st.stamp()
	t.st.buyers[b.ID] = *b

	return nil
}

func (t *memTx) UpdateBuyer(_ context.Context, b *sale.Buyer) error {
	if _, ok := t.st.buyers[b.ID]; !ok {
		return sale.ErrNotFound
	}

	t.st.buyers[b.ID] = *b

	return nil
}

func (t *memTx) DeleteBuyer(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.buyers[id]; !ok {
		return sale.ErrNotFound
	}

	delete(t.st.buyers, id)
	delete(t.st.plans, id)
	maps.DeleteFunc(t.st.payments, func(_ uuid.UUID, p payment.Payment) bool { return p.BuyerID == id })

	return nil
}

func (t *memTx) UpsertPlan(_ context.Context, p *schedule.Plan) error {
	p.CreatedAt = t.st.stamp()
	t.st.plans[p.BuyerID] = *p

	return nil
}

func (t *memTx) CreatePayment(_ context.Context, p *payment.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = t.st.stamp()
	t.st.payments[p.ID] = *p

	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *payment.Payment) error {
	if _, ok := t.st.payments[p.ID]; !ok {
		return sale.ErrNotFound
	}

	t.st.payments[p.ID] = *p

	return nil
}

func (t *memTx) DeletePayment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.payments[id]; !ok {
		return sale.ErrNotFound
	}

	delete(t.st.payments, id)

	return nil
}

func (t *memTx) SetUnitState(_ context.Context, unitID uuid.UUID, state sale.UnitState) error {
	t.st.units[unitID] = state
	return nil
}

func (t *memTx) RecomputeAggregates(_ context.Context, unitID uuid.UUID) error {
	t.st.recomputes[unitID]++
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}

	*t.repo.st = *t.st
	t.finish()

	return nil
}

func (t *memTx) Rollback() error {
	if !t.done {
		t.finish()
	}

	return nil
}

func (t *memTx) finish() {
	t.done = true
	t.repo.mu.Unlock()
}

// memCache is an IdempotencyCache backed by a map.
type memCache struct {
	ids  map[string]uuid.UUID
	hits int
}

func newMemCache() *memCache {
	return &memCache{ids: map[string]uuid.UUID{}}
}

func (c *memCache) Lookup(_ context.Context, buyerID uuid.UUID, key string) (uuid.UUID, bool, error) {
	id, ok := c.ids[buyerID.String()+"/"+key]
	if ok {
		c.hits++
	}

	return id, ok, nil
}

func (c *memCache) Remember(_ context.Context, buyerID uuid.UUID, key string, paymentID uuid.UUID) error {
	c.ids[buyerID.String()+"/"+key] = paymentID
	return nil
}
