package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/sale"
)

type progressState int

const (
	progressStateSale progressState = iota
	progressStateLoading
	progressStateShow
)

// ProgressModel shows how much of a sale has been paid, overall and per buyer.
type ProgressModel struct {
	CommonModel
	session *Session

	state  progressState
	form   *huh.Form
	saleID *string

	bar   progress.Model
	table table.Model
	data  *sale.Progress
	names map[uuid.UUID]string
	err   error
}

func NewProgressModel(s *Session) ProgressModel {
	m := ProgressModel{
		session: s,
		saleID:  new(string),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		table: newTable([]table.Column{
			{Title: "Buyer", Width: 28},
			{Title: "Share", Width: 10},
			{Title: "Committed", Width: 16},
			{Title: "Paid", Width: 16},
			{Title: "%", Width: 6},
		}, 10),
	}
	m.form = idForm("Sale ID", m.saleID)

	return m
}

func (m ProgressModel) Title() string { return "Sale Progress" }

func (m ProgressModel) Init() tea.Cmd {
	return m.form.Init()
}

type progressLoadedMsg struct {
	progress *sale.Progress
	names    map[uuid.UUID]string
	err      error
}

func (m ProgressModel) loadCmd() tea.Cmd {
	id := uuid.MustParse(*m.saleID)

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		p, err := m.session.Sales.GetProgress(ctx, id)
		if err != nil {
			return progressLoadedMsg{err: err}
		}

		ids := make([]uuid.UUID, len(p.Buyers))
		for i, b := range p.Buyers {
			ids[i] = b.PartyID
		}

		// Names are cosmetic; fall back to ids when the directory is unavailable.
		names, err := m.session.Parties.DisplayNames(ctx, ids)
		if err != nil {
			names = nil
		}

		return progressLoadedMsg{progress: p, names: names}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressLoadedMsg:
		m.state = progressStateShow
		m.err = msg.err
		m.data = msg.progress
		m.names = msg.names

		if m.data != nil {
			m.table.SetRows(m.rows())
		}

		return m, nil

	case tea.KeyMsg:
		if m.state == progressStateLoading {
			return m, nil
		}

		if msg.Type == tea.KeyEsc {
			if m.state == progressStateShow {
				next := NewProgressModel(m.session)
				return next, next.Init()
			}

			return m, Back
		}

		if m.state == progressStateShow && msg.String() == "r" {
			m.state = progressStateLoading
			return m, m.loadCmd()
		}
	}

	if m.state == progressStateSale {
		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = progressStateLoading

		return m, m.loadCmd()
	}

	if m.state == progressStateShow {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ProgressModel) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.data.Buyers))
	for _, b := range m.data.Buyers {
		name, ok := m.names[b.PartyID]
		if !ok {
			name = b.PartyID.String()
		}

		rows = append(rows, table.Row{
			name,
			b.Percentage.String() + "%",
			FormatAmount(b.Committed),
			FormatAmount(b.Paid),
			fmt.Sprintf("%d", b.Percent),
		})
	}

	return rows
}

func (m ProgressModel) View() string {
	switch m.state {
	case progressStateSale:
		return pad.Render(m.form.View())
	case progressStateLoading:
		return pad.Render("Loading...")
	}

	if m.err != nil {
		return pad.Render(errorView(m.err) + "\n\n" + helpStyle.Render("Esc: back"))
	}

	p := m.data
	pct := min(float64(p.Percent), 100) / 100

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sale "+p.SaleID.String()) + "\n\n")
	fmt.Fprintf(&b, "State: %s\n", p.State)
	fmt.Fprintf(&b, "Paid:  %s of %s (%d%%)\n\n", FormatAmount(p.Paid), FormatAmount(p.Total), p.Percent)
	b.WriteString(m.bar.ViewAs(pct) + "\n\n")

	if p.Complete() {
		b.WriteString(okStyle.Render("Paid in full") + "\n\n")
	}

	if len(p.Buyers) == 0 {
		b.WriteString(warnStyle.Render("No buyers attached yet.") + "\n")
	} else {
		b.WriteString(m.table.View() + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("r: refresh | Esc: another sale"))

	return pad.Render(b.String())
}
