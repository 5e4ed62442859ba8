package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

func TestCompany(t *testing.T) {
	_, err := tenant.Company(context.Background())
	assert.ErrorIs(t, err, tenant.ErrMissing)

	_, err = tenant.Company(tenant.WithCompany(context.Background(), uuid.Nil))
	assert.ErrorIs(t, err, tenant.ErrMissing)

	id := uuid.New()
	got, err := tenant.Company(tenant.WithCompany(context.Background(), id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
