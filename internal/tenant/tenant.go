// Package tenant carries the company a request acts on behalf of.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrMissing = errors.New("missing tenant")

type ctxKey struct{}

func WithCompany(ctx context.Context, companyID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, companyID)
}

// Company returns the company id stored in ctx, or ErrMissing.
func Company(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrMissing
	}

	return id, nil
}
