package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	reader
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{reader: reader{q: db}, db: db}
}

// translate maps driver errors onto the sale package's sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sale.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", sale.ErrConcurrentModification, pgErr.Message)
		case "23505": // unique_violation, e.g. a racing idempotency key
			return fmt.Errorf("%w: %s", sale.ErrConcurrentModification, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", sale.ErrNotFound, pgErr.ConstraintName)
		}
	}

	return err
}

const selectSaleColumns = `
	s.id, s.company_id, s.unit_id, s.total_price, s.fractional, s.state, s.notes, s.version,
	s.created_at, s.updated_at
`

// Expected column order: selectSaleColumns.
func scanSale(s scanner) (*sale.Sale, error) {
	var sl sale.Sale

	var state string

	if err := s.Scan(
		&sl.ID, &sl.CompanyID, &sl.UnitID, &sl.TotalPrice, &sl.Fractional, &state, &sl.Notes, &sl.Version,
		&sl.CreatedAt, &sl.UpdatedAt,
	); err != nil {
		return nil, err
	}

	sl.State = sale.State(state)

	return &sl, nil
}

const selectBuyerColumns = `
	b.id, b.sale_id, b.party_id, b.percentage, b.committed_amount, b.seller_id, b.created_at, b.updated_at
`

func scanBuyer(s scanner) (*sale.Buyer, error) {
	var b sale.Buyer

	if err := s.Scan(
		&b.ID, &b.SaleID, &b.PartyID, &b.Percentage, &b.CommittedAmount, &b.SellerID, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &b, nil
}

const selectPlanColumns = `
	p.buyer_id, p.total, p.term_months, p.monthly_amount, p.payment_day,
	p.down_payment, p.down_payment_date,
	p.final_settlement, p.final_settlement_amount, p.final_settlement_date,
	p.created_at, p.updated_at
`

func scanPlan(s scanner) (*schedule.Plan, error) {
	var p schedule.Plan

	if err := s.Scan(
		&p.BuyerID, &p.Total, &p.TermMonths, &p.MonthlyAmount, &p.PaymentDay,
		&p.DownPayment, &p.DownPaymentDate,
		&p.FinalSettlement, &p.FinalSettlementAmount, &p.FinalSettlementDate,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

const selectPaymentColumns = `
	p.id, p.buyer_id, p.amount, p.paid_on, p.method, p.reference, p.proof_url, p.notes, p.state,
	COALESCE(p.idempotency_key, ''), p.created_at, p.updated_at
`

func scanPayment(s scanner) (*payment.Payment, error) {
	var p payment.Payment

	var method, state string

	if err := s.Scan(
		&p.ID, &p.BuyerID, &p.Amount, &p.PaidOn, &method, &p.Reference, &p.ProofURL, &p.Notes, &state,
		&p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Method = payment.Method(method)
	p.State = payment.State(state)

	return &p, nil
}

// reader implements sale.Reader over either the pool or an open transaction.
// Every query is scoped to the company in the context.
type reader struct {
	q querier
}

func (r reader) GetSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectSaleColumns + `
		FROM sales s
		WHERE s.id = $1 AND s.company_id = $2`

	sl, err := scanSale(r.q.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting sale: %w", translate(err))
	}

	return sl, nil
}

func (r reader) GetBuyer(ctx context.Context, id uuid.UUID) (*sale.Buyer, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectBuyerColumns + `
		FROM sale_buyers b
		JOIN sales s ON s.id = b.sale_id
		WHERE b.id = $1 AND s.company_id = $2`

	b, err := scanBuyer(r.q.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting buyer: %w", translate(err))
	}

	return b, nil
}

func (r reader) ListBuyers(ctx context.Context, saleID uuid.UUID) ([]*sale.Buyer, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectBuyerColumns + `
		FROM sale_buyers b
		JOIN sales s ON s.id = b.sale_id
		WHERE b.sale_id = $1 AND s.company_id = $2
		ORDER BY b.created_at ASC, b.id ASC`

	rows, err := r.q.QueryContext(ctx, query, saleID, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing buyers: %w", translate(err))
	}
	defer rows.Close()

	var buyers []*sale.Buyer

	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning buyer: %w", err)
		}

		buyers = append(buyers, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buyer rows: %w", translate(err))
	}

	return buyers, nil
}

func (r reader) GetPlan(ctx context.Context, buyerID uuid.UUID) (*schedule.Plan, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectPlanColumns + `
		FROM payment_plans p
		JOIN sale_buyers b ON b.id = p.buyer_id
		JOIN sales s ON s.id = b.sale_id
		WHERE p.buyer_id = $1 AND s.company_id = $2`

	p, err := scanPlan(r.q.QueryRowContext(ctx, query, buyerID, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting plan: %w", translate(err))
	}

	return p, nil
}

func (r reader) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.getPayment(ctx, "p.id = $1", id)
}

func (r reader) FindPaymentByKey(ctx context.Context, buyerID uuid.UUID, key string) (*payment.Payment, error) {
	return r.getPayment(ctx, "p.buyer_id = $1 AND p.idempotency_key = $3", buyerID, key)
}

// getPayment fetches one payment matching cond. $2 is always the company.
func (r reader) getPayment(ctx context.Context, cond string, first any, rest ...any) (*payment.Payment, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectPaymentColumns + `
		FROM payments p
		JOIN sale_buyers b ON b.id = p.buyer_id
		JOIN sales s ON s.id = b.sale_id
		WHERE ` + cond + ` AND s.company_id = $2`

	args := append([]any{first, companyID}, rest...)

	p, err := scanPayment(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment: %w", translate(err))
	}

	return p, nil
}

func (r reader) ListPayments(ctx context.Context, buyerID uuid.UUID) ([]*payment.Payment, error) {
	return r.listPayments(ctx, "p.buyer_id = $1", buyerID, nil)
}

func (r reader) ListSalePayments(ctx context.Context, saleID uuid.UUID, filter sale.PaymentFilter) ([]*payment.Payment, error) {
	return r.listPayments(ctx, "b.sale_id = $1", saleID, filter.State)
}

func (r reader) listPayments(ctx context.Context, cond string, id uuid.UUID, state *payment.State) ([]*payment.Payment, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + selectPaymentColumns + `
		FROM payments p
		JOIN sale_buyers b ON b.id = p.buyer_id
		JOIN sales s ON s.id = b.sale_id
		WHERE ` + cond + ` AND s.company_id = $2`

	args := []any{id, companyID}

	if state != nil {
		query += " AND p.state = $3"

		args = append(args, *state)
	}

	query += " ORDER BY p.created_at ASC, p.seq ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", translate(err))
	}
	defer rows.Close()

	var payments []*payment.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", translate(err))
	}

	return payments, nil
}

// CreateSale inserts a sale for a unit of the caller's company. An unknown
// unit yields ErrNotFound.
func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sales (company_id, unit_id, total_price, fractional, state, notes, version, created_at, updated_at)
		SELECT u.company_id, u.id, $2, $3, $4, $5, 1, NOW(), NOW()
		FROM units u
		WHERE u.id = $1 AND u.company_id = $6
		RETURNING id, company_id, version, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		sl.UnitID,
		sl.TotalPrice,
		sl.Fractional,
		sl.State,
		sl.Notes,
		companyID,
	).Scan(&sl.ID, &sl.CompanyID, &sl.Version, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unit %s", sale.ErrNotFound, sl.UnitID)
		}

		return fmt.Errorf("creating sale: %w", translate(err))
	}

	return nil
}

type saleTx struct {
	reader
	tx *sql.Tx
}

// Begin opens a transaction and locks the sale row until it ends.
func (s *Store) Begin(ctx context.Context, saleID uuid.UUID) (sale.Tx, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning sale tx: %w", err)
	}

	var locked uuid.UUID

	err = dbTx.QueryRowContext(ctx,
		"SELECT id FROM sales WHERE id = $1 AND company_id = $2 FOR UPDATE", saleID, companyID,
	).Scan(&locked)
	if err != nil {
		dbTx.Rollback()

		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("locking sale: %w", translate(err))
	}

	return &saleTx{reader: reader{q: dbTx}, tx: dbTx}, nil
}

func (t *saleTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return translate(err)
	}

	return nil
}

func (t *saleTx) Rollback() error { return t.tx.Rollback() }

// UpdateSale writes the sale if nobody bumped its version in between.
func (t *saleTx) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	query := `
		UPDATE sales
		SET total_price = $1, fractional = $2, state = $3, notes = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		sl.TotalPrice,
		sl.Fractional,
		sl.State,
		sl.Notes,
		sl.ID,
		sl.Version,
	).Scan(&sl.Version, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: sale %s changed since version %d", sale.ErrConcurrentModification, sl.ID, sl.Version)
		}

		return fmt.Errorf("updating sale: %w", translate(err))
	}

	return nil
}

func (t *saleTx) CreateBuyer(ctx context.Context, b *sale.Buyer) error {
	query := `
		INSERT INTO sale_buyers (sale_id, party_id, percentage, committed_amount, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		b.SaleID,
		b.PartyID,
		b.Percentage,
		b.CommittedAmount,
		b.SellerID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating buyer: %w", translate(err))
	}

	return nil
}

func (t *saleTx) UpdateBuyer(ctx context.Context, b *sale.Buyer) error {
	query := `
		UPDATE sale_buyers
		SET percentage = $1, committed_amount = $2, seller_id = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`

	err := t.tx.QueryRowContext(ctx, query, b.Percentage, b.CommittedAmount, b.SellerID, b.ID).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sale.ErrNotFound
		}

		return fmt.Errorf("updating buyer: %w", translate(err))
	}

	return nil
}

// DeleteBuyer removes the record; its plan and payments go with it by cascade.
func (t *saleTx) DeleteBuyer(ctx context.Context, id uuid.UUID) error {
	return t.deleteOne(ctx, "DELETE FROM sale_buyers WHERE id = $1", id, "buyer")
}

func (t *saleTx) UpsertPlan(ctx context.Context, p *schedule.Plan) error {
	query := `
		INSERT INTO payment_plans (
			buyer_id, total, term_months, monthly_amount, payment_day,
			down_payment, down_payment_date,
			final_settlement, final_settlement_amount, final_settlement_date,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (buyer_id) DO UPDATE SET
			total = EXCLUDED.total,
			term_months = EXCLUDED.term_months,
			monthly_amount = EXCLUDED.monthly_amount,
			payment_day = EXCLUDED.payment_day,
			down_payment = EXCLUDED.down_payment,
			down_payment_date = EXCLUDED.down_payment_date,
			final_settlement = EXCLUDED.final_settlement,
			final_settlement_amount = EXCLUDED.final_settlement_amount,
			final_settlement_date = EXCLUDED.final_settlement_date,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		p.BuyerID,
		p.Total,
		p.TermMonths,
		p.MonthlyAmount,
		p.PaymentDay,
		p.DownPayment,
		p.DownPaymentDate,
		p.FinalSettlement,
		p.FinalSettlementAmount,
		p.FinalSettlementDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting plan: %w", translate(err))
	}

	return nil
}

// CreatePayment stamps created_at with clock_timestamp() so creation order
// follows the order in which writers acquired the sale lock.
func (t *saleTx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (buyer_id, amount, paid_on, method, reference, proof_url, notes, state, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), clock_timestamp(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		p.BuyerID,
		p.Amount,
		p.PaidOn,
		p.Method,
		p.Reference,
		p.ProofURL,
		p.Notes,
		p.State,
		p.IdempotencyKey,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", translate(err))
	}

	return nil
}

func (t *saleTx) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, paid_on = $2, method = $3, reference = $4, proof_url = $5, notes = $6, state = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		p.Amount,
		p.PaidOn,
		p.Method,
		p.Reference,
		p.ProofURL,
		p.Notes,
		p.State,
		p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sale.ErrNotFound
		}

		return fmt.Errorf("updating payment: %w", translate(err))
	}

	return nil
}

func (t *saleTx) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return t.deleteOne(ctx, "DELETE FROM payments WHERE id = $1", id, "payment")
}

func (t *saleTx) SetUnitState(ctx context.Context, unitID uuid.UUID, state sale.UnitState) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE units SET state = $1, updated_at = NOW() WHERE id = $2", state, unitID)
	if err != nil {
		return fmt.Errorf("updating unit state: %w", translate(err))
	}

	return requireOne(res, "unit", unitID)
}

// RecomputeAggregates refreshes the unit counters of the unit's development.
func (t *saleTx) RecomputeAggregates(ctx context.Context, unitID uuid.UUID) error {
	query := `
		UPDATE developments d
		SET units_total = agg.total, units_sold = agg.sold, units_available = agg.available, updated_at = NOW()
		FROM (
			SELECT development_id,
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE state = 'vendido') AS sold,
				COUNT(*) FILTER (WHERE state = 'disponible') AS available
			FROM units
			WHERE development_id = (SELECT development_id FROM units WHERE id = $1)
			GROUP BY development_id
		) agg
		WHERE d.id = agg.development_id
	`

	if _, err := t.tx.ExecContext(ctx, query, unitID); err != nil {
		return fmt.Errorf("recomputing aggregates: %w", translate(err))
	}

	return nil
}

func (t *saleTx) deleteOne(ctx context.Context, query string, id uuid.UUID, what string) error {
	res, err := t.tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", what, translate(err))
	}

	return requireOne(res, what, id)
}

func requireOne(res sql.Result, what string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting affected %s rows: %w", what, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s %s", sale.ErrNotFound, what, id)
	}

	return nil
}
