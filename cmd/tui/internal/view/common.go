package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/export"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/party"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

const dbTimeout = 5 * time.Second

// Session holds the services every view talks to and the company the
// operator works for.
type Session struct {
	Company  uuid.UUID
	Sales    *sale.Service
	Parties  *party.Directory
	Importer *importer.Service
	Exporter *export.Service
}

// Ctx returns a company-scoped context with a standard timeout for database operations.
func (s *Session) Ctx() (context.Context, context.CancelFunc) {
	return s.CtxTimeout(dbTimeout)
}

func (s *Session) CtxTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	return tenant.WithCompany(ctx, s.Company), cancel
}

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

var (
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pad        = lipgloss.NewStyle().Padding(1)
)

// FormatAmount renders cents as a currency amount.
func FormatAmount(cents int64) string {
	return "$" + money.FormatAmount(cents)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func validateID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("not a valid id")
	}

	return nil
}

// idForm asks for a single record id.
func idForm(title string, dst *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder("00000000-0000-0000-0000-000000000000").
				Validate(validateID).
				Value(dst),
		),
	).WithWidth(60).WithShowHelp(false)
}

// updateForm feeds msg to the form and reports whether it was completed.
func updateForm(form *huh.Form, msg tea.Msg) (*huh.Form, tea.Cmd, bool) {
	m, cmd := form.Update(msg)
	if f, ok := m.(*huh.Form); ok {
		form = f
	}

	return form, cmd, form.State == huh.StateCompleted
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func errorView(err error) string {
	return errStyle.Render(fmt.Sprintf("Error: %v", err))
}
