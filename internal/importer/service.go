package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

//go:generate mockgen -source=service.go -destination=registrar_mock.go -package=importer

// Registrar records one payment; sale.Service satisfies it.
type Registrar interface {
	RegisterPayment(ctx context.Context, buyerID uuid.UUID, params payment.RegisterParams) (*payment.Payment, error)
}

// Result reports what an import did.
type Result struct {
	Format   Format
	Payments []*payment.Payment
}

type Service struct {
	registrar Registrar
	parser    Importer
}

func NewService(registrar Registrar) *Service {
	return &Service{
		registrar: registrar,
		parser:    NewParser(),
	}
}

// Import parses the sheet and registers every row against the buyer. Rows
// carry deterministic idempotency keys, so after a failure the same file can
// be uploaded again and only the missing rows are created. The returned
// result holds the payments registered before the failing row.
func (s *Service) Import(ctx context.Context, buyerID uuid.UUID, format Format, r io.Reader) (*Result, error) {
	batch, err := s.parser.Parse(r, format)
	if err != nil {
		return nil, err
	}

	res := &Result{Format: batch.Format}

	for _, row := range batch.Rows {
		p, err := s.registrar.RegisterPayment(ctx, buyerID, row.Params)
		if err != nil {
			return res, fmt.Errorf("registering line %d: %w", row.Line, err)
		}

		res.Payments = append(res.Payments, p)
	}

	slog.InfoContext(ctx, "imported payments", "buyer_id", buyerID, "format", batch.Format, "rows", len(batch.Rows))

	return res, nil
}
