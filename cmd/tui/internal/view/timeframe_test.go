package view

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRangeOf(t *testing.T) {
	now := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		tf   Timeframe
		want DateRange
	}{
		{TimeframeThisMonth, DateRange{Start: date(2024, time.March, 1), End: date(2024, time.March, 15)}},
		{TimeframeLastMonth, DateRange{Start: date(2024, time.February, 1), End: date(2024, time.February, 29)}},
		{TimeframeLastQuarter, DateRange{Start: date(2024, time.January, 1), End: date(2024, time.March, 15)}},
		{TimeframeAll, DateRange{All: true}},
	}

	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, rangeOf(tt.tf, now))
		})
	}
}

func TestLastMonthAcrossYear(t *testing.T) {
	r := rangeOf(TimeframeLastMonth, date(2025, time.January, 10))

	assert.Equal(t, date(2024, time.December, 1), r.Start)
	assert.Equal(t, date(2024, time.December, 31), r.End)
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: date(2024, time.March, 1), End: date(2024, time.March, 31)}

	assert.True(t, r.Contains(date(2024, time.March, 1)))
	assert.True(t, r.Contains(time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(date(2024, time.April, 1)))
	assert.False(t, r.Contains(date(2024, time.February, 29)))
	assert.True(t, DateRange{All: true}.Contains(date(1999, time.January, 1)))
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 31), r.End)

	_, err = parseRange("2024-13-01", "2024-01-31")
	assert.ErrorContains(t, err, "start date")

	_, err = parseRange("2024-01-01", "yesterday")
	assert.ErrorContains(t, err, "end date")

	_, err = parseRange("2024-02-01", "2024-01-31")
	assert.ErrorContains(t, err, "before")
}

func TestTimeframePickerSelect(t *testing.T) {
	p := NewTimeframePicker(TimeframeThisMonth)
	p.now = func() time.Time { return date(2024, time.March, 15) }

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(TimeframeSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, date(2024, time.February, 1), msg.Range.Start)
	assert.True(t, p.IsSelecting())
}

func TestTimeframePickerCustom(t *testing.T) {
	p := NewTimeframePicker(TimeframeCustom)

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, p.IsSelecting())

	p.startInput.SetValue("2024-05-01")
	p.endInput.SetValue("2024-04-01")

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Error(t, p.err)

	p.endInput.SetValue("2024-05-31")

	_, cmd = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd().(TimeframeSelectedMsg)
	assert.Equal(t, DateRange{Start: date(2024, time.May, 1), End: date(2024, time.May, 31)}, msg.Range)
}
