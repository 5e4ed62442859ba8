package view

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/export"
)

const exportTimeout = 2 * time.Minute

type exportState int

const (
	exportStateForm exportState = iota
	exportStateExporting
	exportStateResult
)

type exportFields struct {
	buyerID string
	dir     string
	bundle  bool
}

// ExportModel writes a buyer's account statement to disk, optionally bundled
// with the proof documents.
type ExportModel struct {
	CommonModel
	session *Session

	state   exportState
	form    *huh.Form
	fields  *exportFields
	spinner spinner.Model

	file    string
	summary string
	err     error
}

func NewExportModel(s *Session) ExportModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	f := &exportFields{dir: "./exports"}

	return ExportModel{
		session: s,
		fields:  f,
		form:    buildExportForm(f),
		spinner: sp,
	}
}

func buildExportForm(f *exportFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buyer ID").
				Validate(validateID).
				Value(&f.buyerID),
			huh.NewInput().
				Title("Output Path").
				Description("Directory will be created if it doesn't exist").
				Placeholder("./exports").
				Value(&f.dir),
			huh.NewConfirm().
				Title("Attach proofs of payment?").
				Description("Writes a zip with the statement and every proof document").
				Value(&f.bundle),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m ExportModel) Title() string { return "Export Statement" }

func (m ExportModel) ShortHelp() string {
	switch m.state {
	case exportStateResult:
		return "Esc: back to menu"
	case exportStateExporting:
		return "Exporting..."
	}

	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return m.form.Init()
}

type exportResultMsg struct {
	file string
	body string
	err  error
}

func (m ExportModel) runExportCmd() tea.Cmd {
	f := *m.fields

	return func() tea.Msg {
		ctx, cancel := m.session.CtxTimeout(exportTimeout)
		defer cancel()

		buyerID := uuid.MustParse(f.buyerID)

		st, err := m.session.Exporter.Statement(ctx, buyerID)
		if err != nil {
			return exportResultMsg{err: err}
		}

		var buf bytes.Buffer

		var items []export.Item

		ext := ".csv"
		if f.bundle {
			ext = ".zip"
			items, err = m.session.Exporter.Bundle(ctx, &buf, st)
		} else {
			err = export.WriteCSV(&buf, st)
		}

		if err != nil {
			return exportResultMsg{err: err}
		}

		if err := os.MkdirAll(f.dir, 0o755); err != nil {
			return exportResultMsg{err: fmt.Errorf("creating output directory: %w", err)}
		}

		name := fmt.Sprintf("estado_%s_%s%s", shortID(buyerID), st.IssuedAt.Format("20060102"), ext)
		path := filepath.Join(f.dir, name)

		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return exportResultMsg{err: fmt.Errorf("writing %s: %w", name, err)}
		}

		return exportResultMsg{file: path, body: summarize(st, items)}
	}
}

func summarize(st *export.Statement, items []export.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Buyer:    %s\n", st.BuyerName)
	fmt.Fprintf(&b, "Payments: %d\n", len(st.Payments))
	fmt.Fprintf(&b, "Paid:     %s\n", FormatAmount(st.Paid))
	fmt.Fprintf(&b, "Pending:  %s\n", FormatAmount(st.Pending))

	if st.Plan == nil {
		b.WriteString(warnStyle.Render("No plan agreed yet") + "\n")
	}

	if items != nil {
		var proofs int
		for _, it := range items {
			if it.FileName != "" {
				proofs++
			}
		}

		fmt.Fprintf(&b, "Proofs:   %d\n", proofs)
	}

	return b.String()
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case exportStateForm:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
			return m, Back
		}

		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = exportStateExporting
		m.err = nil

		return m, tea.Batch(m.spinner.Tick, m.runExportCmd())

	case exportStateExporting:
		if result, ok := msg.(exportResultMsg); ok {
			m.state = exportStateResult
			m.err = result.err
			m.file = result.file
			m.summary = result.body

			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case exportStateResult:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
			return m, Back
		}
	}

	return m, nil
}

func (m ExportModel) View() string {
	switch m.state {
	case exportStateForm:
		return pad.Render(m.form.View())
	case exportStateExporting:
		what := "statement"
		if m.fields.bundle {
			what = "statement and downloading proofs"
		}

		return pad.Render(fmt.Sprintf("%s Exporting %s...", m.spinner.View(), what))
	}

	if m.err != nil {
		return pad.Render(errorView(m.err) + "\n\n" + helpStyle.Render("Esc: back to menu"))
	}

	return pad.Render(lipgloss.JoinVertical(lipgloss.Left,
		okStyle.Render("Export Complete!"),
		"",
		"Written to "+m.file,
		"",
		m.summary,
		helpStyle.Render("Esc: back to menu"),
	))
}
