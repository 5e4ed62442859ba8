package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/http/auth"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

func TestAuthenticator_Middleware(t *testing.T) {
	a := auth.New("s3cret")
	companyID := uuid.New()

	valid, err := a.Issue(companyID, "operator", time.Hour)
	require.NoError(t, err)

	expired, err := a.Issue(companyID, "operator", -time.Minute)
	require.NoError(t, err)

	foreign, err := auth.New("other").Issue(companyID, "operator", time.Hour)
	require.NoError(t, err)

	noCompany, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "no company claim", header: "Bearer " + noCompany, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID

			h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = tenant.Company(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, companyID, got)
			}
		})
	}
}
