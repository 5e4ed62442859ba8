package main

import (
	"errors"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/plazos/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/plazos/internal/config"
	"github.com/MrJamesThe3rd/plazos/internal/database"
	"github.com/MrJamesThe3rd/plazos/internal/export"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/party"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	saleStore "github.com/MrJamesThe3rd/plazos/internal/sale/store"
)

type View int

const (
	ViewMenu View = iota
	ViewProgress
	ViewCalendar
	ViewReview
	ViewRegister
	ViewImport
	ViewExport
)

type model struct {
	session *view.Session

	currentView View

	progressView view.ProgressModel
	calendarView view.CalendarModel
	reviewView   view.ReviewModel
	registerView view.RegisterModel
	importView   view.ImportModel
	exportView   view.ExportModel
}

func initialModel() (model, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return model{}, err
	}

	if cfg.TUI.CompanyID == uuid.Nil {
		return model{}, errors.New("TUI_COMPANY_ID is required")
	}

	db, err := database.New(cfg.ConnectionString(), cfg.Server.Timeout)
	if err != nil {
		return model{}, err
	}

	parties := party.NewDirectory(db)
	sales := sale.NewService(saleStore.New(db))

	s := &view.Session{
		Company:  cfg.TUI.CompanyID,
		Sales:    sales,
		Parties:  parties,
		Importer: importer.NewService(sales),
		Exporter: export.NewService(sales, parties, cfg.Proofs.Token),
	}

	return model{session: s, currentView: ViewMenu}, nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			return m.updateMenu(msg)
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	var (
		next tea.Model
		cmd  tea.Cmd
	)

	switch m.currentView {
	case ViewProgress:
		next, cmd = m.progressView.Update(msg)
		m.progressView = next.(view.ProgressModel)
	case ViewCalendar:
		next, cmd = m.calendarView.Update(msg)
		m.calendarView = next.(view.CalendarModel)
	case ViewReview:
		next, cmd = m.reviewView.Update(msg)
		m.reviewView = next.(view.ReviewModel)
	case ViewRegister:
		next, cmd = m.registerView.Update(msg)
		m.registerView = next.(view.RegisterModel)
	case ViewImport:
		next, cmd = m.importView.Update(msg)
		m.importView = next.(view.ImportModel)
	case ViewExport:
		next, cmd = m.exportView.Update(msg)
		m.exportView = next.(view.ExportModel)
	}

	return m, cmd
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1":
		m.currentView = ViewProgress
		m.progressView = view.NewProgressModel(m.session)

		return m, m.progressView.Init()
	case "2":
		m.currentView = ViewCalendar
		m.calendarView = view.NewCalendarModel(m.session)

		return m, m.calendarView.Init()
	case "3":
		m.currentView = ViewReview
		m.reviewView = view.NewReviewModel(m.session)

		return m, m.reviewView.Init()
	case "4":
		m.currentView = ViewRegister
		m.registerView = view.NewRegisterModel(m.session)

		return m, m.registerView.Init()
	case "5":
		m.currentView = ViewImport
		m.importView = view.NewImportModel(m.session)

		return m, m.importView.Init()
	case "6":
		m.currentView = ViewExport
		m.exportView = view.NewExportModel(m.session)

		return m, m.exportView.Init()
	}

	return m, nil
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Plazos TUI\n\n" +
				"1. Sale Progress\n" +
				"2. Payment Calendar\n" +
				"3. Review Payments\n" +
				"4. Register Payment\n" +
				"5. Import Payments\n" +
				"6. Export Statement\n\n" +
				"q. Quit",
		)
	case ViewProgress:
		return m.progressView.View()
	case ViewCalendar:
		return m.calendarView.View()
	case ViewReview:
		return m.reviewView.View()
	case ViewRegister:
		return m.registerView.View()
	case ViewImport:
		return m.importView.View()
	case ViewExport:
		return m.exportView.View()
	}

	return "Unknown View"
}

func main() {
	m, err := initialModel()
	if err != nil {
		slog.Error("failed to start TUI", "error", err)
		os.Exit(1)
	}

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
