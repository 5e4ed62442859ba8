// Package party resolves buyer and seller ids to display names.
package party

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

var ErrNotFound = errors.New("party not found")

type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return "", err
	}

	var name string

	err = d.db.QueryRowContext(ctx,
		"SELECT name FROM parties WHERE id = $1 AND company_id = $2", id, companyID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return "", fmt.Errorf("getting party name: %w", err)
	}

	return name, nil
}

// DisplayNames resolves several ids at once; unknown ids are left out.
func (d *Directory) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	companyID, err := tenant.Company(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	// Sent as an array literal so any database/sql driver accepts it.
	array := "{" + strings.Join(strs, ",") + "}"

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, name FROM parties WHERE id = ANY($1::uuid[]) AND company_id = $2", array, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing party names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID

		var name string

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning party: %w", err)
		}

		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating party rows: %w", err)
	}

	return names, nil
}
