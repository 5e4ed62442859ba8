package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrJamesThe3rd/plazos/internal/money"
)

// Timeframe is a predefined or custom range of payment dates.
type Timeframe int

const (
	TimeframeThisMonth Timeframe = iota
	TimeframeLastMonth
	TimeframeLastQuarter
	TimeframeAll
	TimeframeCustom
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeLastQuarter:
		return "Last 3 Months"
	case TimeframeAll:
		return "All Time"
	case TimeframeCustom:
		return "Custom Range"
	}

	return "Unknown"
}

// DateRange is an inclusive range of calendar days. All matches any date.
type DateRange struct {
	Start time.Time
	End   time.Time
	All   bool
}

// Contains reports whether the calendar day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.All {
		return true
	}

	d := money.DateOnly(t)

	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	if r.All {
		return TimeframeAll.String()
	}

	return fmt.Sprintf("%s to %s", FormatDate(r.Start), FormatDate(r.End))
}

func rangeOf(tf Timeframe, now time.Time) DateRange {
	today := money.DateOnly(now)
	month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch tf {
	case TimeframeThisMonth:
		return DateRange{Start: month, End: today}
	case TimeframeLastMonth:
		start := money.AddMonths(month, -1)
		return DateRange{Start: start, End: month.AddDate(0, 0, -1)}
	case TimeframeLastQuarter:
		return DateRange{Start: money.AddMonths(month, -2), End: today}
	}

	return DateRange{All: true}
}

// TimeframeSelectedMsg is emitted when the user has picked a valid range.
type TimeframeSelectedMsg struct {
	Range DateRange
}

type timeframeState int

const (
	timeframeStateSelect timeframeState = iota
	timeframeStateCustom
)

// TimeframePicker is a reusable component for selecting a date range.
type TimeframePicker struct {
	state    timeframeState
	selected Timeframe
	now      func() time.Time

	startInput textinput.Model
	endInput   textinput.Model
	focusIndex int

	err error
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	si := textinput.New()
	si.Placeholder = "YYYY-MM-DD"
	si.CharLimit = 10
	si.Width = 12
	si.Prompt = "From: "

	ei := textinput.New()
	ei.Placeholder = "YYYY-MM-DD"
	ei.CharLimit = 10
	ei.Width = 12
	ei.Prompt = "To:   "

	return TimeframePicker{
		state:      timeframeStateSelect,
		selected:   initial,
		now:        time.Now,
		startInput: si,
		endInput:   ei,
	}
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if m.state == timeframeStateSelect {
			return m.updateSelect(key)
		}

		if next, cmd, handled := m.updateCustom(key); handled {
			return next, cmd
		}
	}

	if m.state != timeframeStateCustom {
		return m, nil
	}

	var c1, c2 tea.Cmd
	m.startInput, c1 = m.startInput.Update(msg)
	m.endInput, c2 = m.endInput.Update(msg)

	return m, tea.Batch(c1, c2)
}

func (m TimeframePicker) updateSelect(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > TimeframeThisMonth {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < TimeframeCustom {
			m.selected++
		}
	case tea.KeyEnter:
		if m.selected == TimeframeCustom {
			m.state = timeframeStateCustom
			m.focusIndex = 0
			m.startInput.Focus()

			return m, textinput.Blink
		}

		r := rangeOf(m.selected, m.now())

		return m, func() tea.Msg { return TimeframeSelectedMsg{Range: r} }
	}

	return m, nil
}

func (m TimeframePicker) updateCustom(msg tea.KeyMsg) (TimeframePicker, tea.Cmd, bool) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusIndex = 1 - m.focusIndex
		m.startInput.Blur()
		m.endInput.Blur()

		if m.focusIndex == 0 {
			m.startInput.Focus()
		} else {
			m.endInput.Focus()
		}

		return m, textinput.Blink, true

	case "enter":
		r, err := parseRange(m.startInput.Value(), m.endInput.Value())
		if err != nil {
			m.err = err
			return m, nil, true
		}

		m.err = nil

		return m, func() tea.Msg { return TimeframeSelectedMsg{Range: r} }, true

	case "esc":
		m.state = timeframeStateSelect
		m.err = nil

		return m, nil, true
	}

	return m, nil, false
}

func parseRange(from, to string) (DateRange, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date (YYYY-MM-DD)")
	}

	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date (YYYY-MM-DD)")
	}

	if end.Before(start) {
		return DateRange{}, fmt.Errorf("end date is before start date")
	}

	return DateRange{Start: start, End: end}, nil
}

func (m TimeframePicker) View() string {
	errStr := ""
	if m.err != nil {
		errStr = "\n\n" + errorView(m.err)
	}

	if m.state == timeframeStateCustom {
		return fmt.Sprintf(
			"Payments made between:\n\n%s\n%s\n\n%s%s",
			m.startInput.View(),
			m.endInput.View(),
			helpStyle.Render("Enter: confirm | Tab: switch | Esc: back"),
			errStr,
		)
	}

	s := "Payments made:\n\n"
	for tf := TimeframeThisMonth; tf <= TimeframeCustom; tf++ {
		cursor := " "
		if m.selected == tf {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, tf)
	}

	return s + "\n" + helpStyle.Render("Enter: select | Esc: back") + errStr
}

// IsSelecting reports whether the picker shows the list rather than the custom inputs.
func (m TimeframePicker) IsSelecting() bool {
	return m.state == timeframeStateSelect
}

func (m *TimeframePicker) Reset() {
	m.state = timeframeStateSelect
	m.err = nil
	m.startInput.SetValue("")
	m.endInput.SetValue("")
}
