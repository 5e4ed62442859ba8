package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/MrJamesThe3rd/plazos/internal/money"
)

// WriteCSV renders the statement as a sectioned CSV sheet.
func WriteCSV(w io.Writer, st *Statement) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Estado de cuenta", st.IssuedAt.Format("2006-01-02")},
		{"Venta", st.Sale.ID.String()},
		{"Estado de la venta", string(st.Sale.State)},
		{"Comprador", st.BuyerName},
		{"Porcentaje", st.Buyer.Percentage.String()},
		{"Monto comprometido", money.FormatAmount(st.Buyer.CommittedAmount)},
		{},
	}

	if st.Plan != nil {
		p := st.Plan

		rows = append(rows,
			[]string{"Plan"},
			[]string{"Monto financiado", money.FormatAmount(p.Total)},
			[]string{"Plazo (meses)", strconv.Itoa(p.TermMonths)},
			[]string{"Mensualidad", money.FormatAmount(p.MonthlyAmount)},
			[]string{"Día de pago", strconv.Itoa(p.PaymentDay)},
			[]string{"Enganche", money.FormatAmount(p.DownPayment)},
			[]string{"Finiquito", money.FormatAmount(p.FinalSettlementAmount)},
			[]string{"Plan desactualizado", yesNo(p.Stale)},
			[]string{},
			[]string{"Calendario"},
			[]string{"#", "Fecha", "Concepto", "Monto", "Estado", "Pago"},
		)

		for _, d := range st.Calendar {
			paymentID := ""
			if d.PaymentID != nil {
				paymentID = d.PaymentID.String()
			}

			rows = append(rows, []string{
				strconv.Itoa(d.Seq),
				d.DueDate.Format("2006-01-02"),
				d.Description,
				money.FormatAmount(d.Amount),
				string(d.Status),
				paymentID,
			})
		}

		rows = append(rows, []string{})
	}

	rows = append(rows,
		[]string{"Pagos"},
		[]string{"ID", "Fecha", "Monto", "Método", "Referencia", "Estado", "Comprobante"},
	)

	for _, p := range st.Payments {
		rows = append(rows, []string{
			p.ID.String(),
			p.PaidOn.Format("2006-01-02"),
			money.FormatAmount(p.Amount),
			string(p.Method),
			p.Reference,
			string(p.State),
			p.ProofURL,
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"Totales"},
		[]string{"Pagado", money.FormatAmount(st.Paid)},
		[]string{"Pendiente", money.FormatAmount(st.Pending)},
	)

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing statement: %w", err)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}

	return "no"
}
