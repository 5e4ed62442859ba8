package schedule_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

func pay(amount int64, paidOn time.Time, createdAt time.Time, state payment.State) *payment.Payment {
	return &payment.Payment{
		ID:        uuid.New(),
		Amount:    amount,
		PaidOn:    paidOn,
		Method:    payment.MethodTransfer,
		State:     state,
		CreatedAt: createdAt,
	}
}

func scenarioAPlan(t *testing.T) *schedule.Plan {
	t.Helper()

	plan, err := schedule.Generate(uuid.New(), 120000, schedule.PlanParams{
		TermMonths:      12,
		PaymentDay:      10,
		DownPaymentDate: new(date(2024, 1, 10)),
	})
	require.NoError(t, err)

	return plan
}

func TestDues_ScenarioA(t *testing.T) {
	plan := scenarioAPlan(t)

	dues := schedule.Dues(plan, date(2024, 1, 1))
	require.Len(t, dues, 12)

	var sum int64

	for i, d := range dues {
		assert.Equal(t, i+1, d.Seq)
		assert.Equal(t, int64(10000), d.Amount)
		assert.Equal(t, 10, d.DueDate.Day())

		sum += d.Amount
	}

	assert.Equal(t, int64(120000), sum)
	assert.Equal(t, date(2024, 2, 10), dues[0].DueDate)
	assert.Equal(t, date(2025, 1, 10), dues[11].DueDate)
}

func TestDues_ClampsPaymentDay(t *testing.T) {
	plan, err := schedule.Generate(uuid.New(), 3000, schedule.PlanParams{
		TermMonths:      3,
		PaymentDay:      31,
		DownPayment:     0,
		DownPaymentDate: new(date(2024, 1, 31)),
	})
	require.NoError(t, err)

	dues := schedule.Dues(plan, date(2024, 1, 1))
	require.Len(t, dues, 3)
	assert.Equal(t, date(2024, 2, 29), dues[0].DueDate)
	assert.Equal(t, date(2024, 3, 31), dues[1].DueDate)
	assert.Equal(t, date(2024, 4, 30), dues[2].DueDate)
}

func TestDues_DownPaymentAndFinalSettlement(t *testing.T) {
	plan, err := schedule.Generate(uuid.New(), 10000, schedule.PlanParams{
		TermMonths:            2,
		PaymentDay:            5,
		DownPayment:           2000,
		DownPaymentDate:       new(date(2024, 6, 20)),
		FinalSettlement:       true,
		FinalSettlementAmount: 4000,
		FinalSettlementDate:   new(date(2024, 12, 1)),
	})
	require.NoError(t, err)

	dues := schedule.Dues(plan, date(2024, 1, 1))
	require.Len(t, dues, 4)

	assert.Equal(t, 0, dues[0].Seq)
	assert.Equal(t, "Enganche", dues[0].Description)
	assert.Equal(t, date(2024, 6, 20), dues[0].DueDate)
	assert.Equal(t, date(2024, 7, 5), dues[1].DueDate)
	assert.Equal(t, date(2024, 8, 5), dues[2].DueDate)
	assert.Equal(t, 3, dues[3].Seq)
	assert.Equal(t, "Finiquito", dues[3].Description)
	assert.Equal(t, int64(4000), dues[3].Amount)
}

func TestDues_WithoutDownPaymentDateUsesToday(t *testing.T) {
	plan, err := schedule.Generate(uuid.New(), 2000, schedule.PlanParams{TermMonths: 2, PaymentDay: 15})
	require.NoError(t, err)

	dues := schedule.Dues(plan, time.Date(2024, 8, 20, 13, 45, 0, 0, time.UTC))
	require.Len(t, dues, 2)
	assert.Equal(t, date(2024, 9, 15), dues[0].DueDate)
	assert.Equal(t, date(2024, 10, 15), dues[1].DueDate)
}

func TestCalendar_Statuses(t *testing.T) {
	plan := scenarioAPlan(t)
	today := date(2024, 4, 20)

	payments := []*payment.Payment{
		pay(10000, date(2024, 2, 8), date(2024, 2, 8), payment.StateVerified),
		pay(10000, date(2024, 3, 12), date(2024, 3, 12), payment.StateRegistered),
	}

	dues := schedule.Calendar(plan, payments, today)
	require.Len(t, dues, 12)

	assert.Equal(t, schedule.StatusPaid, dues[0].Status)
	assert.Equal(t, payments[0].ID, *dues[0].PaymentID)
	assert.Equal(t, schedule.StatusPaid, dues[1].Status)
	assert.Equal(t, payments[1].ID, *dues[1].PaymentID)
	assert.Equal(t, schedule.StatusLate, dues[2].Status)
	assert.Nil(t, dues[2].PaymentID)
	assert.Equal(t, schedule.StatusPending, dues[3].Status)
}

func TestCalendar_ZeroInstallmentsAreNotPaidWithoutPayment(t *testing.T) {
	// 5 cents over 12 months: installments 1..11 are 0, the last carries 5.
	plan, err := schedule.Generate(uuid.New(), 5, schedule.PlanParams{
		TermMonths:      12,
		PaymentDay:      10,
		DownPaymentDate: new(date(2025, 1, 10)),
	})
	require.NoError(t, err)

	dues := schedule.Calendar(plan, nil, date(2026, 1, 1))
	require.Len(t, dues, 12)

	for _, d := range dues[:11] {
		assert.Zero(t, d.Amount)
		assert.Nil(t, d.PaymentID)
		assert.Equal(t, schedule.StatusLate, d.Status, "due %d", d.Seq)
	}

	assert.Equal(t, int64(5), dues[11].Amount)
	assert.Equal(t, schedule.StatusPending, dues[11].Status)
}

func TestCalendar_NoDoubleMatching(t *testing.T) {
	plan, err := schedule.Generate(uuid.New(), 40000, schedule.PlanParams{
		TermMonths:            2,
		PaymentDay:            1,
		DownPayment:           10000,
		DownPaymentDate:       new(date(2024, 1, 1)),
		FinalSettlement:       true,
		FinalSettlementAmount: 10000,
		FinalSettlementDate:   new(date(2024, 2, 20)),
	})
	require.NoError(t, err)

	// Down payment, first installment and both February dues are all 10000.
	single := pay(10000, date(2024, 2, 2), date(2024, 2, 2), payment.StateVerified)

	dues := schedule.Calendar(plan, []*payment.Payment{single}, date(2024, 1, 1))

	matched := 0

	for _, d := range dues {
		if d.PaymentID != nil {
			matched++

			assert.Equal(t, single.ID, *d.PaymentID)
		}
	}

	assert.Equal(t, 1, matched)
	assert.Equal(t, schedule.StatusPaid, dues[1].Status)
	assert.Equal(t, schedule.StatusPending, dues[3].Status)
}

func TestCalendar_GreedyEarliestCreatedFirst(t *testing.T) {
	plan := scenarioAPlan(t)

	later := pay(10000, date(2024, 2, 3), date(2024, 2, 5), payment.StateRegistered)
	earlier := pay(10000, date(2024, 2, 4), date(2024, 2, 4), payment.StateRegistered)

	dues := schedule.Calendar(plan, []*payment.Payment{later, earlier}, date(2024, 1, 1))

	require.NotNil(t, dues[0].PaymentID)
	assert.Equal(t, earlier.ID, *dues[0].PaymentID)
	// The second February payment cannot satisfy the March due.
	assert.Nil(t, dues[1].PaymentID)
}

func TestCalendar_RequiresExactAmountAndMonth(t *testing.T) {
	plan := scenarioAPlan(t)

	payments := []*payment.Payment{
		pay(9999, date(2024, 2, 10), date(2024, 2, 10), payment.StateVerified),
		pay(10000, date(2024, 4, 1), date(2024, 4, 1), payment.StateVerified),
	}

	dues := schedule.Calendar(plan, payments, date(2024, 5, 1))

	assert.Equal(t, schedule.StatusLate, dues[0].Status)
	assert.Equal(t, schedule.StatusLate, dues[1].Status)
	assert.Equal(t, schedule.StatusPaid, dues[2].Status)
}

func TestCalendar_ScenarioD_RejectedRevertsDue(t *testing.T) {
	plan := scenarioAPlan(t)
	monthFive := pay(10000, date(2024, 6, 10), date(2024, 6, 10), payment.StateRegistered)

	dues := schedule.Calendar(plan, []*payment.Payment{monthFive}, date(2024, 6, 15))
	assert.Equal(t, schedule.StatusPaid, dues[4].Status)

	require.NoError(t, monthFive.Transition(payment.StateRejected))

	dues = schedule.Calendar(plan, []*payment.Payment{monthFive}, date(2024, 6, 15))
	assert.Equal(t, schedule.StatusLate, dues[4].Status)
	assert.Nil(t, dues[4].PaymentID)

	dues = schedule.Calendar(plan, []*payment.Payment{monthFive}, date(2024, 6, 1))
	assert.Equal(t, schedule.StatusPending, dues[4].Status)
}

func TestCalendar_Idempotent(t *testing.T) {
	plan := scenarioAPlan(t)
	payments := []*payment.Payment{
		pay(10000, date(2024, 2, 8), date(2024, 2, 8), payment.StateVerified),
		pay(10000, date(2024, 2, 9), date(2024, 2, 9), payment.StateRegistered),
		pay(10000, date(2024, 5, 9), date(2024, 5, 9), payment.StateRejected),
	}
	today := date(2024, 6, 1)

	first := schedule.Calendar(plan, payments, today)
	second := schedule.Calendar(plan, payments, today)

	assert.Equal(t, first, second)
}
