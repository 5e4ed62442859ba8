package sale_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
)

func TestComputeProgress(t *testing.T) {
	s := &sale.Sale{ID: uuid.New(), TotalPrice: 300000, State: sale.StateInProgress}
	a := &sale.Buyer{ID: uuid.New(), Percentage: pct("66.67"), CommittedAmount: 200010}
	b := &sale.Buyer{ID: uuid.New(), Percentage: pct("33.33"), CommittedAmount: 99990}

	payments := []*payment.Payment{
		{BuyerID: a.ID, Amount: 100000, State: payment.StateVerified},
		{BuyerID: a.ID, Amount: 50000, State: payment.StateRejected},
		{BuyerID: b.ID, Amount: 99990, State: payment.StateRegistered},
	}

	prog := sale.ComputeProgress(s, []*sale.Buyer{a, b}, payments)

	assert.Equal(t, int64(199990), prog.Paid)
	assert.Equal(t, int64(67), prog.Percent)
	assert.False(t, prog.Complete())
	require.Len(t, prog.Buyers, 2)
	assert.Equal(t, int64(100000), prog.Buyers[0].Paid)
	assert.Equal(t, int64(50), prog.Buyers[0].Percent)
	assert.Equal(t, int64(100), prog.Buyers[1].Percent)
}

func TestComputeProgress_Overpaid(t *testing.T) {
	s := &sale.Sale{ID: uuid.New(), TotalPrice: 1000}
	b := &sale.Buyer{ID: uuid.New(), Percentage: pct("100"), CommittedAmount: 1000}

	prog := sale.ComputeProgress(s, []*sale.Buyer{b}, []*payment.Payment{
		{BuyerID: b.ID, Amount: 1500, State: payment.StateRegistered},
	})

	assert.Equal(t, int64(150), prog.Percent)
	assert.True(t, prog.Complete())
}

func TestComputeProgress_NoPayments(t *testing.T) {
	prog := sale.ComputeProgress(&sale.Sale{TotalPrice: 1000}, nil, nil)

	assert.Zero(t, prog.Paid)
	assert.Zero(t, prog.Percent)
	assert.Empty(t, prog.Buyers)
}
