package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

type calendarState int

const (
	calendarStateBuyer calendarState = iota
	calendarStateLoading
	calendarStateShow
)

// CalendarModel lists a buyer's dues and which payment settled each one.
type CalendarModel struct {
	CommonModel
	session *Session

	state   calendarState
	form    *huh.Form
	buyerID *string

	plan  *sale.PlanView
	dues  []schedule.Due
	table table.Model
	err   error
}

func NewCalendarModel(s *Session) CalendarModel {
	m := CalendarModel{
		session: s,
		buyerID: new(string),
		table: newTable([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Due", Width: 12},
			{Title: "Concept", Width: 24},
			{Title: "Amount", Width: 16},
			{Title: "Status", Width: 10},
			{Title: "Payment", Width: 10},
		}, 15),
	}
	m.form = idForm("Buyer ID", m.buyerID)

	return m
}

func (m CalendarModel) Title() string { return "Payment Calendar" }

func (m CalendarModel) Init() tea.Cmd {
	return m.form.Init()
}

type calendarLoadedMsg struct {
	plan *sale.PlanView
	dues []schedule.Due
	err  error
}

func (m CalendarModel) loadCmd() tea.Cmd {
	id := uuid.MustParse(*m.buyerID)

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		plan, err := m.session.Sales.GetPlan(ctx, id)
		if err != nil {
			return calendarLoadedMsg{err: err}
		}

		dues, err := m.session.Sales.ListCalendar(ctx, id)

		return calendarLoadedMsg{plan: plan, dues: dues, err: err}
	}
}

func (m CalendarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case calendarLoadedMsg:
		m.state = calendarStateShow
		m.plan = msg.plan
		m.dues = msg.dues
		m.err = msg.err
		m.table.SetRows(calendarRows(m.dues))

		return m, nil

	case tea.KeyMsg:
		if m.state == calendarStateLoading {
			return m, nil
		}

		if msg.Type == tea.KeyEsc {
			if m.state == calendarStateShow {
				next := NewCalendarModel(m.session)
				return next, next.Init()
			}

			return m, Back
		}
	}

	switch m.state {
	case calendarStateBuyer:
		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = calendarStateLoading

		return m, m.loadCmd()

	case calendarStateShow:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)

		return m, cmd
	}

	return m, nil
}

func calendarRows(dues []schedule.Due) []table.Row {
	rows := make([]table.Row, 0, len(dues))
	for _, d := range dues {
		paidBy := ""
		if d.PaymentID != nil {
			paidBy = shortID(*d.PaymentID)
		}

		rows = append(rows, table.Row{
			fmt.Sprintf("%d", d.Seq),
			FormatDate(d.DueDate),
			d.Description,
			FormatAmount(d.Amount),
			string(d.Status),
			paidBy,
		})
	}

	return rows
}

func (m CalendarModel) View() string {
	switch m.state {
	case calendarStateBuyer:
		return pad.Render(m.form.View())
	case calendarStateLoading:
		return pad.Render("Loading...")
	}

	if errors.Is(m.err, sale.ErrNotFound) {
		return pad.Render(warnStyle.Render("No plan found for this buyer.") + "\n\n" + helpStyle.Render("Esc: back"))
	}

	if m.err != nil {
		return pad.Render(errorView(m.err) + "\n\n" + helpStyle.Render("Esc: back"))
	}

	p := m.plan

	var b strings.Builder
	b.WriteString(titleStyle.Render("Buyer "+*m.buyerID) + "\n\n")
	fmt.Fprintf(&b, "Financed: %s over %d months, %s monthly on day %d\n",
		FormatAmount(p.Total), p.TermMonths, FormatAmount(p.MonthlyAmount), p.PaymentDay)

	if p.Stale {
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"Plan total no longer matches the committed amount (%s); update the plan.", FormatAmount(p.Committed),
		)) + "\n")
	}

	var late int
	for _, d := range m.dues {
		if d.Status == schedule.StatusLate {
			late++
		}
	}

	if late > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("%d dues are late", late)) + "\n")
	}

	b.WriteString("\n" + m.table.View() + "\n\n" + helpStyle.Render("Esc: another buyer"))

	return pad.Render(b.String())
}
