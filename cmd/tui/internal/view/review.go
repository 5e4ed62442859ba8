package view

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
)

type reviewState int

const (
	reviewStateSale reviewState = iota
	reviewStateTimeframe
	reviewStateReviewing
)

// ReviewModel walks the registered payments of a sale one by one so the
// operator can verify or reject them.
type ReviewModel struct {
	CommonModel
	session *Session

	state  reviewState
	form   *huh.Form
	saleID *string
	picker TimeframePicker
	window DateRange

	queue   []*payment.Payment
	current *payment.Payment

	loading  bool
	verified int
	rejected int
	skipped  int
	status   string
	err      error
}

func NewReviewModel(s *Session) ReviewModel {
	m := ReviewModel{
		session: s,
		saleID:  new(string),
		picker:  NewTimeframePicker(TimeframeAll),
	}
	m.form = idForm("Sale ID", m.saleID)

	return m
}

func (m ReviewModel) Title() string { return "Review Payments" }

func (m ReviewModel) Init() tea.Cmd {
	return m.form.Init()
}

type pendingLoadedMsg struct {
	payments []*payment.Payment
	err      error
}

type reviewedMsg struct {
	payment *payment.Payment
	err     error
}

func (m ReviewModel) loadCmd() tea.Cmd {
	id := uuid.MustParse(*m.saleID)
	window := m.window

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		all, err := m.session.Sales.ListSalePayments(ctx, id, sale.PaymentFilter{
			State: new(payment.StateRegistered),
		})
		if err != nil {
			return pendingLoadedMsg{err: err}
		}

		payments := slices.DeleteFunc(all, func(p *payment.Payment) bool {
			return !window.Contains(p.PaidOn)
		})

		return pendingLoadedMsg{payments: payments}
	}
}

func (m ReviewModel) reviewCmd(id uuid.UUID, next payment.State) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		p, err := m.session.Sales.SetPaymentReviewState(ctx, id, next)

		return reviewedMsg{payment: p, err: err}
	}
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.window = msg.Range
		m.state = reviewStateReviewing
		m.loading = true
		m.status = "Loading registered payments..."

		return m, m.loadCmd()

	case pendingLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.queue = msg.payments
		m.next()

		return m, nil

	case reviewedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		if msg.payment.State == payment.StateVerified {
			m.verified++
		} else {
			m.rejected++
		}

		m.next()

		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		switch m.state {
		case reviewStateSale:
			if msg.Type == tea.KeyEsc {
				return m, Back
			}
		case reviewStateTimeframe:
			if msg.Type == tea.KeyEsc && m.picker.IsSelecting() {
				return m, Back
			}
		case reviewStateReviewing:
			return m.updateReviewing(msg)
		}
	}

	switch m.state {
	case reviewStateSale:
		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = reviewStateTimeframe

		return m, nil

	case reviewStateTimeframe:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ReviewModel) updateReviewing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return m, Back
	}

	if m.current == nil {
		return m, nil
	}

	switch msg.String() {
	case "v":
		m.loading = true
		return m, m.reviewCmd(m.current.ID, payment.StateVerified)
	case "x":
		m.loading = true
		return m, m.reviewCmd(m.current.ID, payment.StateRejected)
	case "s":
		m.skipped++
		m.next()
	}

	return m, nil
}

func (m *ReviewModel) next() {
	if len(m.queue) == 0 {
		m.current = nil
		m.status = fmt.Sprintf("All done! %d verified, %d rejected, %d skipped.", m.verified, m.rejected, m.skipped)

		return
	}

	m.current = m.queue[0]
	m.queue = m.queue[1:]
	m.status = fmt.Sprintf("%d left after this one", len(m.queue))
}

func (m ReviewModel) View() string {
	switch m.state {
	case reviewStateSale:
		return pad.Render(m.form.View())
	case reviewStateTimeframe:
		return pad.Render(m.picker.View())
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Registered payments, "+m.window.String()) + "\n\n")

	if m.err != nil {
		b.WriteString(errorView(m.err) + "\n\n")
	}

	if m.current == nil {
		b.WriteString(m.status + "\n\n" + helpStyle.Render("Esc: back"))
		return pad.Render(b.String())
	}

	p := m.current
	fmt.Fprintf(&b, "%s\n\n", m.status)
	fmt.Fprintf(&b, "Payment:   %s\n", p.ID)
	fmt.Fprintf(&b, "Buyer:     %s\n", p.BuyerID)
	fmt.Fprintf(&b, "Paid on:   %s\n", FormatDate(p.PaidOn))
	fmt.Fprintf(&b, "Amount:    %s\n", FormatAmount(p.Amount))
	fmt.Fprintf(&b, "Method:    %s\n", p.Method)

	if p.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", p.Reference)
	}

	if p.ProofURL != "" {
		fmt.Fprintf(&b, "Proof:     %s\n", p.ProofURL)
	}

	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes:     %s\n", p.Notes)
	}

	b.WriteString("\n" + helpStyle.Render("v: verify | x: reject | s: skip | Esc: back"))

	return pad.Render(b.String())
}
