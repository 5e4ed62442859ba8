package view

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateSetup importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

type importFields struct {
	buyerID string
	format  string
}

// ImportModel registers the payments listed in a spreadsheet against a buyer.
type ImportModel struct {
	CommonModel
	session *Session

	state      importState
	form       *huh.Form
	fields     *importFields
	filePicker filepicker.Model
	spinner    spinner.Model

	path   string
	result *importer.Result
	err    error
}

func NewImportModel(s *Session) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	f := &importFields{format: string(importer.FormatAuto)}

	return ImportModel{
		session:    s,
		fields:     f,
		form:       buildImportForm(f),
		filePicker: fp,
		spinner:    sp,
	}
}

func buildImportForm(f *importFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buyer ID").
				Validate(validateID).
				Value(&f.buyerID),
			huh.NewSelect[string]().
				Title("Layout").
				Options(
					huh.NewOption("Detect from header", string(importer.FormatAuto)),
					huh.NewOption("Bank statement", string(importer.FormatBank)),
					huh.NewOption("Payment list", string(importer.FormatManual)),
				).
				Value(&f.format),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m ImportModel) Title() string { return "Import Payments" }

func (m ImportModel) Init() tea.Cmd {
	return m.form.Init()
}

type importResultMsg struct {
	result *importer.Result
	err    error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	buyerID := uuid.MustParse(m.fields.buyerID)
	format := importer.Format(m.fields.format)

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: fmt.Errorf("opening file: %w", err)}
		}
		defer f.Close()

		ctx, cancel := m.session.CtxTimeout(importTimeout)
		defer cancel()

		res, err := m.session.Importer.Import(ctx, buyerID, format, f)

		return importResultMsg{result: res, err: err}
	}
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		return m.handleEsc()
	}

	switch m.state {
	case importStateSetup:
		form, cmd, done := updateForm(m.form, msg)
		m.form = form

		if !done {
			return m, cmd
		}

		m.state = importStateFilePick

		return m, tea.Batch(cmd, m.filePicker.Init())

	case importStateFilePick:
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.path = path
			m.state = importStateImporting

			return m, tea.Batch(m.spinner.Tick, m.importCmd(path))
		}

		return m, cmd

	case importStateImporting:
		if res, ok := msg.(importResultMsg); ok {
			m.state = importStateResult
			m.result = res.result
			m.err = res.err

			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		next := NewImportModel(m.session)
		return next, next.Init()
	case importStateImporting:
		return m, nil
	case importStateResult:
		next := NewImportModel(m.session)
		next.filePicker.CurrentDirectory = m.filePicker.CurrentDirectory

		return next, next.Init()
	}

	return m, Back
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateSetup:
		return pad.Render(m.form.View() + "\n" + helpStyle.Render("Enter: next | Esc: back"))
	case importStateFilePick:
		return pad.Render("Pick the spreadsheet:\n\n" + m.filePicker.View() + "\n" + helpStyle.Render("Enter: select | Esc: back"))
	case importStateImporting:
		return pad.Render(fmt.Sprintf("%s Importing %s...", m.spinner.View(), m.path))
	}

	var b strings.Builder

	if m.result != nil {
		n := len(m.result.Payments)
		if m.err == nil {
			b.WriteString(okStyle.Render("Import complete") + "\n\n")
		}

		fmt.Fprintf(&b, "Layout: %s\n", layoutName(m.result.Format))
		fmt.Fprintf(&b, "Payments registered: %d\n", n)

		var total int64
		for _, p := range m.result.Payments {
			total += p.Amount
		}

		fmt.Fprintf(&b, "Total: %s\n\n", FormatAmount(total))
	}

	if m.err != nil {
		b.WriteString(errorView(m.err) + "\n")
		b.WriteString("Importing the same file again only adds the missing rows.\n\n")
	}

	b.WriteString(helpStyle.Render("Esc: import another file"))

	return pad.Render(b.String())
}

func layoutName(f importer.Format) string {
	switch f {
	case importer.FormatBank:
		return "bank statement"
	case importer.FormatManual:
		return "payment list"
	}

	return string(f)
}
