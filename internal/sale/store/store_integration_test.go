//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrJamesThe3rd/plazos/internal/database"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/sale/store"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("plazos_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(dsn, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))

	return db
}

type fixture struct {
	company uuid.UUID
	unit    uuid.UUID
	dev     uuid.UUID
	parties []uuid.UUID
}

func seed(t *testing.T, db *sql.DB, nParties int) fixture {
	t.Helper()

	f := fixture{company: uuid.New()}

	require.NoError(t, db.QueryRow(
		"INSERT INTO developments (company_id, name, units_total, units_available) VALUES ($1, 'Lomas', 1, 1) RETURNING id",
		f.company,
	).Scan(&f.dev))

	require.NoError(t, db.QueryRow(
		"INSERT INTO units (company_id, development_id, code) VALUES ($1, $2, 'A-101') RETURNING id",
		f.company, f.dev,
	).Scan(&f.unit))

	for i := range nParties {
		var id uuid.UUID
		require.NoError(t, db.QueryRow(
			"INSERT INTO parties (company_id, name) VALUES ($1, $2) RETURNING id",
			f.company, []string{"Ana", "Luis", "Marta"}[i],
		).Scan(&id))
		f.parties = append(f.parties, id)
	}

	return f
}

func TestIntegration_SaleLifecycle(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db, 2)

	svc := sale.NewService(store.New(db))
	ctx := tenant.WithCompany(context.Background(), f.company)

	sl, err := svc.StartSale(ctx, sale.StartParams{UnitID: f.unit, TotalPrice: 100_000_00, Fractional: true})
	require.NoError(t, err)
	assert.Equal(t, sale.StateInProgress, sl.State)

	ana, err := svc.AttachBuyer(ctx, sl.ID, sale.AttachParams{PartyID: f.parties[0], Percentage: decimal.RequireFromString("60")})
	require.NoError(t, err)
	assert.Equal(t, int64(60_000_00), ana.CommittedAmount)

	luis, err := svc.AttachBuyer(ctx, sl.ID, sale.AttachParams{PartyID: f.parties[1], Percentage: decimal.RequireFromString("40")})
	require.NoError(t, err)

	_, err = svc.AttachBuyer(ctx, sl.ID, sale.AttachParams{PartyID: f.parties[1], Percentage: decimal.RequireFromString("0.5")})
	assert.ErrorIs(t, err, sale.ErrInvalidAllocation)

	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	plan, err := svc.UpsertPlan(ctx, ana.ID, schedule.PlanParams{
		TermMonths:      3,
		PaymentDay:      10,
		DownPayment:     15_000_00,
		DownPaymentDate: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15_000_00), plan.MonthlyAmount)

	params := payment.RegisterParams{
		Amount:         15_000_00,
		PaidOn:         start,
		Method:         payment.MethodTransfer,
		IdempotencyKey: "enganche-ana",
	}

	first, err := svc.RegisterPayment(ctx, ana.ID, params)
	require.NoError(t, err)

	again, err := svc.RegisterPayment(ctx, ana.ID, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	dues, err := svc.ListCalendar(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, dues, 4)
	assert.Equal(t, schedule.StatusPaid, dues[0].Status)
	assert.Equal(t, first.ID, *dues[0].PaymentID)

	prog, err := svc.GetProgress(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000_00), prog.Paid)
	assert.Equal(t, int64(15), prog.Percent)

	rejected, err := svc.SetPaymentReviewState(ctx, first.ID, payment.StateRejected)
	require.NoError(t, err)
	assert.Equal(t, payment.StateRejected, rejected.State)

	prog, err = svc.GetProgress(ctx, sl.ID)
	require.NoError(t, err)
	assert.Zero(t, prog.Paid)

	_, err = svc.RegisterPayment(ctx, ana.ID, payment.RegisterParams{Amount: 60_000_00, PaidOn: start, Method: payment.MethodCheck})
	require.NoError(t, err)

	_, err = svc.RegisterPayment(ctx, luis.ID, payment.RegisterParams{Amount: 40_000_00, PaidOn: start, Method: payment.MethodCash})
	require.NoError(t, err)

	got, err := svc.GetSale(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StateCompleted, got.State)

	var unitState string
	require.NoError(t, db.QueryRow("SELECT state FROM units WHERE id = $1", f.unit).Scan(&unitState))
	assert.Equal(t, "vendido", unitState)

	var sold, available int
	require.NoError(t, db.QueryRow("SELECT units_sold, units_available FROM developments WHERE id = $1", f.dev).Scan(&sold, &available))
	assert.Equal(t, 1, sold)
	assert.Equal(t, 0, available)
}

func TestIntegration_ConcurrentRegisterSameKey(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db, 1)

	svc := sale.NewService(store.New(db))
	ctx := tenant.WithCompany(context.Background(), f.company)

	sl, err := svc.StartSale(ctx, sale.StartParams{UnitID: f.unit, TotalPrice: 500_000_00})
	require.NoError(t, err)

	b, err := svc.AttachBuyer(ctx, sl.ID, sale.AttachParams{PartyID: f.parties[0], Percentage: decimal.NewFromInt(100)})
	require.NoError(t, err)

	params := payment.RegisterParams{
		Amount:         1_000_00,
		PaidOn:         time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		Method:         payment.MethodDeposit,
		IdempotencyKey: "retry-me",
	}

	const n = 8

	ids := make([]uuid.UUID, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			p, err := svc.RegisterPayment(ctx, b.ID, params)
			assert.NoError(t, err)

			if p != nil {
				ids[i] = p.ID
			}
		})
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	payments, err := svc.ListPayments(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestIntegration_TenantIsolation(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db, 0)

	svc := sale.NewService(store.New(db))

	sl, err := svc.StartSale(tenant.WithCompany(context.Background(), f.company),
		sale.StartParams{UnitID: f.unit, TotalPrice: 1_000_00})
	require.NoError(t, err)

	other := tenant.WithCompany(context.Background(), uuid.New())

	_, err = svc.GetSale(other, sl.ID)
	assert.ErrorIs(t, err, sale.ErrNotFound)

	_, err = svc.StartSale(other, sale.StartParams{UnitID: f.unit, TotalPrice: 1_000_00})
	assert.ErrorIs(t, err, sale.ErrNotFound)
}
