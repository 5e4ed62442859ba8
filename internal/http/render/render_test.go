package render_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/http/render"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", sale.ErrNotFound), http.StatusNotFound},
		{sale.ErrInvalidAllocation, http.StatusUnprocessableEntity},
		{sale.ErrInvalidPlan, http.StatusUnprocessableEntity},
		{sale.ErrInvalidPayment, http.StatusUnprocessableEntity},
		{sale.ErrInvalidSale, http.StatusUnprocessableEntity},
		{sale.ErrHasConfirmedPayments, http.StatusConflict},
		{sale.ErrInvalidTransition, http.StatusConflict},
		{sale.ErrConcurrentModification, http.StatusConflict},
		{render.ErrBadRequest, http.StatusBadRequest},
		{importer.ErrInvalidRow, http.StatusBadRequest},
		{tenant.ErrMissing, http.StatusUnauthorized},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, render.StatusOf(tt.err))
		})
	}
}

func TestError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	render.Error(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAmount(t *testing.T) {
	cents := int64(1500)
	dec := "15.00"
	bad := "15.001"

	got, err := render.Amount(&cents, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), *got)

	got, err = render.Amount(nil, &dec)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), *got)

	got, err = render.Amount(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = render.Amount(&cents, &dec)
	assert.ErrorIs(t, err, render.ErrBadRequest)

	_, err = render.Amount(nil, &bad)
	assert.ErrorIs(t, err, render.ErrBadRequest)
}

type sampleRequest struct {
	Name       string `json:"name" validate:"required"`
	Percentage string `json:"percentage" validate:"required,decimal"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "ok", body: `{"name":"a","percentage":"12.5"}`},
		{name: "malformed", body: `{"name":`, wantErr: "bad request"},
		{name: "unknown field", body: `{"name":"a","percentage":"1","x":1}`, wantErr: "unknown field"},
		{name: "missing", body: `{"percentage":"1"}`, wantErr: "'name' failed required"},
		{name: "not a decimal", body: `{"name":"a","percentage":"abc"}`, wantErr: "'percentage' failed decimal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst sampleRequest

			err := render.Decode(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, render.ErrBadRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
