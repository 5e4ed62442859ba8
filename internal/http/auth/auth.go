// Package auth authenticates API requests with HMAC-signed JWT bearer tokens
// and puts the token's company into the request context.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload. CompanyID selects the tenant every store
// query is scoped to.
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for companyID valid for ttl. Used by the operator
// tooling and tests; production tokens come from the identity provider.
func (a *Authenticator) Issue(companyID uuid.UUID, subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		CompanyID: companyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Parse validates tokenString and returns the company it was issued for.
func (a *Authenticator) Parse(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil || companyID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: company_id claim is missing or malformed", ErrInvalidToken)
	}

	return companyID, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		companyID, err := a.Parse(token)
		if err != nil {
			slog.WarnContext(r.Context(), "rejected token", "error", err)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithCompany(r.Context(), companyID)))
	})
}
