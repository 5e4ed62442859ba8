package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

func TestRegisterFieldsParams(t *testing.T) {
	f := &registerFields{
		buyerID:   "7d1f2a7e-2f6c-4a51-9a59-0a4a3cbf2d11",
		amount:    "1500.50",
		paidOn:    "2024-06-03",
		method:    string(payment.MethodCash),
		reference: "  REF-9 ",
		notes:     "abono",
	}

	id, p, err := f.params("tui-key")
	require.NoError(t, err)

	assert.Equal(t, "7d1f2a7e-2f6c-4a51-9a59-0a4a3cbf2d11", id.String())
	assert.Equal(t, int64(150050), p.Amount)
	assert.Equal(t, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), p.PaidOn)
	assert.Equal(t, payment.MethodCash, p.Method)
	assert.Equal(t, "REF-9", p.Reference)
	assert.Equal(t, "tui-key", p.IdempotencyKey)
}

func TestRegisterFieldsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*registerFields)
	}{
		{"buyer", func(f *registerFields) { f.buyerID = "nope" }},
		{"amount", func(f *registerFields) { f.amount = "12,34,5x" }},
		{"date", func(f *registerFields) { f.paidOn = "03/06/2024" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &registerFields{
				buyerID: "7d1f2a7e-2f6c-4a51-9a59-0a4a3cbf2d11",
				amount:  "10",
				paidOn:  "2024-06-03",
				method:  string(payment.MethodTransfer),
			}
			tt.mutate(f)

			_, _, err := f.params("k")
			assert.Error(t, err)
		})
	}
}

func TestNewRegisterModelKeysAreUnique(t *testing.T) {
	a := NewRegisterModel(&Session{})
	b := NewRegisterModel(&Session{})

	assert.NotEqual(t, a.key, b.key)
	assert.Equal(t, FormatDate(time.Now()), a.fields.paidOn)
}
