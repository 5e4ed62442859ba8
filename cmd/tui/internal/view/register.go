package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

type registerState int

const (
	registerStateForm registerState = iota
	registerStateSaving
	registerStateResult
)

// registerFields backs the form; shared by every copy of the model.
type registerFields struct {
	buyerID   string
	amount    string
	paidOn    string
	method    string
	reference string
	proofURL  string
	notes     string
}

func (f *registerFields) params(key string) (uuid.UUID, payment.RegisterParams, error) {
	id, err := uuid.Parse(f.buyerID)
	if err != nil {
		return uuid.Nil, payment.RegisterParams{}, fmt.Errorf("parsing buyer id: %w", err)
	}

	amount, err := money.ParseAmount(f.amount)
	if err != nil {
		return uuid.Nil, payment.RegisterParams{}, err
	}

	paidOn, err := time.Parse(time.DateOnly, f.paidOn)
	if err != nil {
		return uuid.Nil, payment.RegisterParams{}, fmt.Errorf("parsing date: %w", err)
	}

	return id, payment.RegisterParams{
		Amount:         amount,
		PaidOn:         paidOn,
		Method:         payment.Method(f.method),
		Reference:      strings.TrimSpace(f.reference),
		ProofURL:       strings.TrimSpace(f.proofURL),
		Notes:          strings.TrimSpace(f.notes),
		IdempotencyKey: key,
	}, nil
}

// RegisterModel records a single payment by hand.
type RegisterModel struct {
	CommonModel
	session *Session

	state   registerState
	form    *huh.Form
	fields  *registerFields
	key     string
	spinner spinner.Model

	result *payment.Payment
	err    error
}

func NewRegisterModel(s *Session) RegisterModel {
	f := &registerFields{
		paidOn: FormatDate(time.Now()),
		method: string(payment.MethodTransfer),
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	return RegisterModel{
		session: s,
		fields:  f,
		form:    buildRegisterForm(f),
		// Retries resend the same key.
		key:     "tui-" + uuid.NewString(),
		spinner: sp,
	}
}

func buildRegisterForm(f *registerFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buyer ID").
				Validate(validateID).
				Value(&f.buyerID),
			huh.NewInput().
				Title("Amount").
				Placeholder("1500.00").
				Validate(func(s string) error {
					cents, err := money.ParseAmount(s)
					if err != nil {
						return err
					}

					if cents <= 0 {
						return fmt.Errorf("amount must be positive")
					}

					return nil
				}).
				Value(&f.amount),
			huh.NewInput().
				Title("Paid on").
				Placeholder("YYYY-MM-DD").
				Validate(func(s string) error {
					_, err := time.Parse(time.DateOnly, s)
					return err
				}).
				Value(&f.paidOn),
			huh.NewSelect[string]().
				Title("Method").
				Options(
					huh.NewOption("Transfer", string(payment.MethodTransfer)),
					huh.NewOption("Cash", string(payment.MethodCash)),
					huh.NewOption("Check", string(payment.MethodCheck)),
					huh.NewOption("Card", string(payment.MethodCard)),
					huh.NewOption("Deposit", string(payment.MethodDeposit)),
				).
				Value(&f.method),
		),
		huh.NewGroup(
			huh.NewInput().Title("Reference").Value(&f.reference),
			huh.NewInput().Title("Proof URL").Value(&f.proofURL),
			huh.NewText().Title("Notes").Lines(3).Value(&f.notes),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m RegisterModel) Title() string { return "Register Payment" }

func (m RegisterModel) Init() tea.Cmd {
	return m.form.Init()
}

type registeredMsg struct {
	payment *payment.Payment
	err     error
}

func (m RegisterModel) saveCmd() tea.Cmd {
	fields, key := m.fields, m.key

	return func() tea.Msg {
		buyerID, params, err := fields.params(key)
		if err != nil {
			return registeredMsg{err: err}
		}

		ctx, cancel := m.session.Ctx()
		defer cancel()

		p, err := m.session.Sales.RegisterPayment(ctx, buyerID, params)

		return registeredMsg{payment: p, err: err}
	}
}

func (m RegisterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case registerStateForm:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
			return m, Back
		}

		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = registerStateSaving

		return m, tea.Batch(m.spinner.Tick, m.saveCmd())

	case registerStateSaving:
		if res, ok := msg.(registeredMsg); ok {
			m.state = registerStateResult
			m.result = res.payment
			m.err = res.err

			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case registerStateResult:
		key, ok := msg.(tea.KeyMsg)
		if !ok {
			return m, nil
		}

		switch {
		case key.Type == tea.KeyEsc:
			return m, Back
		case key.String() == "r" && m.err != nil:
			m.state = registerStateSaving
			return m, tea.Batch(m.spinner.Tick, m.saveCmd())
		case key.String() == "n":
			next := NewRegisterModel(m.session)
			return next, next.Init()
		}
	}

	return m, nil
}

func (m RegisterModel) View() string {
	switch m.state {
	case registerStateForm:
		return pad.Render(m.form.View() + "\n" + helpStyle.Render("Enter: next | Esc: back"))
	case registerStateSaving:
		return pad.Render(m.spinner.View() + " Registering payment...")
	}

	if m.err != nil {
		return pad.Render(errorView(m.err) + "\n\n" + helpStyle.Render("r: retry | n: new payment | Esc: back"))
	}

	p := m.result

	return pad.Render(fmt.Sprintf("%s\n\nPayment %s\n%s on %s, %s\n\n%s",
		okStyle.Render("Payment registered"),
		p.ID, FormatAmount(p.Amount), FormatDate(p.PaidOn), p.State,
		helpStyle.Render("n: new payment | Esc: back"),
	))
}
