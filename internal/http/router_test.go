package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/plazos/internal/export"
	apihttp "github.com/MrJamesThe3rd/plazos/internal/http"
	"github.com/MrJamesThe3rd/plazos/internal/http/auth"
	"github.com/MrJamesThe3rd/plazos/internal/http/buyers"
	exporthttp "github.com/MrJamesThe3rd/plazos/internal/http/export"
	"github.com/MrJamesThe3rd/plazos/internal/http/importcsv"
	"github.com/MrJamesThe3rd/plazos/internal/http/payments"
	"github.com/MrJamesThe3rd/plazos/internal/http/sales"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
)

const secret = "test-secret"

func newRouter(t *testing.T, repo sale.Repository) (http.Handler, string) {
	t.Helper()

	svc := sale.NewService(repo)
	authn := auth.New(secret)

	token, err := authn.Issue(uuid.New(), "tester", time.Hour)
	require.NoError(t, err)

	router := apihttp.New(
		apihttp.Options{AllowedOrigins: []string{"*"}, Timeout: 5 * time.Second, Auth: authn},
		sales.NewHandler(svc),
		buyers.NewHandler(svc),
		payments.NewHandler(svc),
		importcsv.NewHandler(importer.NewService(svc)),
		exporthttp.NewHandler(export.NewService(svc, nil, "")),
	)

	return router, token
}

func do(t *testing.T, h http.Handler, token, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestRouter_StartSale(t *testing.T) {
	unitID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setupMock  func(m *sale.MockRepository)
		wantStatus int
		wantPrice  int64
	}{
		{
			name: "cents",
			body: `{"unit_id":"` + unitID.String() + `","total_price":100000000,"fractional":true}`,
			setupMock: func(m *sale.MockRepository) {
				m.EXPECT().CreateSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *sale.Sale) error {
						s.ID = uuid.New()
						s.Version = 1
						return nil
					})
			},
			wantStatus: http.StatusCreated,
			wantPrice:  100000000,
		},
		{
			name: "decimal",
			body: `{"unit_id":"` + unitID.String() + `","total_price_decimal":"1500.50"}`,
			setupMock: func(m *sale.MockRepository) {
				m.EXPECT().CreateSale(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantStatus: http.StatusCreated,
			wantPrice:  150050,
		},
		{
			name:       "both price forms",
			body:       `{"unit_id":"` + unitID.String() + `","total_price":1,"total_price_decimal":"1"}`,
			setupMock:  func(*sale.MockRepository) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing unit",
			body:       `{"total_price":100}`,
			setupMock:  func(*sale.MockRepository) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing price",
			body:       `{"unit_id":"` + unitID.String() + `"}`,
			setupMock:  func(*sale.MockRepository) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non-positive price",
			body:       `{"unit_id":"` + unitID.String() + `","total_price":0}`,
			setupMock:  func(*sale.MockRepository) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown unit",
			body: `{"unit_id":"` + unitID.String() + `","total_price":100}`,
			setupMock: func(m *sale.MockRepository) {
				m.EXPECT().CreateSale(gomock.Any(), gomock.Any()).Return(sale.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := sale.NewMockRepository(ctrl)
			tt.setupMock(repo)

			router, token := newRouter(t, repo)
			rec := do(t, router, token, http.MethodPost, "/api/v1/sales", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusCreated {
				return
			}

			var got struct {
				TotalPrice int64      `json:"total_price"`
				UnitID     uuid.UUID  `json:"unit_id"`
				State      sale.State `json:"state"`
			}

			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantPrice, got.TotalPrice)
			assert.Equal(t, unitID, got.UnitID)
			assert.Equal(t, sale.StateInProgress, got.State)
		})
	}
}

func TestRouter_GetSale(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := sale.NewMockRepository(ctrl)
	router, token := newRouter(t, repo)

	found := &sale.Sale{ID: uuid.New(), TotalPrice: 123456, State: sale.StateCompleted}
	missing := uuid.New()

	repo.EXPECT().GetSale(gomock.Any(), found.ID).Return(found, nil)
	repo.EXPECT().GetSale(gomock.Any(), missing).Return(nil, sale.ErrNotFound)

	rec := do(t, router, token, http.MethodGet, "/api/v1/sales/"+found.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_price_decimal":"1234.56"`)

	rec = do(t, router, token, http.MethodGet, "/api/v1/sales/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, token, http.MethodGet, "/api/v1/sales/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	router, _ := newRouter(t, sale.NewMockRepository(ctrl))

	rec := do(t, router, "", http.MethodGet, "/api/v1/sales/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RejectsWrongContentType(t *testing.T) {
	ctrl := gomock.NewController(t)
	router, token := newRouter(t, sale.NewMockRepository(ctrl))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader("unit_id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_RegisterPaymentReplaysIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := sale.NewMockRepository(ctrl)
	tx := sale.NewMockTx(ctrl)
	router, token := newRouter(t, repo)

	buyer := &sale.Buyer{ID: uuid.New(), SaleID: uuid.New(), Percentage: decimal.NewFromInt(100)}
	existing := &payment.Payment{
		ID:             uuid.New(),
		BuyerID:        buyer.ID,
		Amount:         50000,
		PaidOn:         time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Method:         payment.MethodTransfer,
		State:          payment.StateRegistered,
		IdempotencyKey: "k-1",
	}

	gomock.InOrder(
		repo.EXPECT().GetBuyer(gomock.Any(), buyer.ID).Return(buyer, nil),
		repo.EXPECT().Begin(gomock.Any(), buyer.SaleID).Return(tx, nil),
		tx.EXPECT().GetBuyer(gomock.Any(), buyer.ID).Return(buyer, nil),
		tx.EXPECT().FindPaymentByKey(gomock.Any(), buyer.ID, "k-1").Return(existing, nil),
		tx.EXPECT().Commit().Return(nil),
		tx.EXPECT().Rollback().Return(nil),
	)

	body := `{"amount":50000,"paid_on":"2024-01-10","method":"transferencia"}`
	rec := do(t, router, token, http.MethodPost, "/api/v1/buyers/"+buyer.ID.String()+"/payments", body,
		buyers.IdempotencyHeader, "k-1")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got struct {
		ID     uuid.UUID `json:"id"`
		PaidOn string    `json:"paid_on"`
	}

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, "2024-01-10", got.PaidOn)
}

func TestRouter_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "unknown payment state filter", method: http.MethodGet, path: "/api/v1/sales/" + uuid.NewString() + "/payments?state=paid"},
		{name: "unknown review state", method: http.MethodPost, path: "/api/v1/payments/" + uuid.NewString() + "/review", body: `{"state":"approved"}`},
		{name: "forced state en_proceso", method: http.MethodPost, path: "/api/v1/sales/" + uuid.NewString() + "/state", body: `{"state":"en_proceso"}`},
		{name: "percentage not decimal", method: http.MethodPatch, path: "/api/v1/buyers/" + uuid.NewString(), body: `{"percentage":"half"}`},
		{name: "payment date format", method: http.MethodPost, path: "/api/v1/buyers/" + uuid.NewString() + "/payments", body: `{"amount":1,"paid_on":"10/01/2024","method":"efectivo"}`},
		{name: "plan term zero", method: http.MethodPut, path: "/api/v1/buyers/" + uuid.NewString() + "/plan", body: `{"term_months":0,"payment_day":10}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			router, token := newRouter(t, sale.NewMockRepository(ctrl))

			rec := do(t, router, token, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}
