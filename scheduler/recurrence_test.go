package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/models"
)

func intPtr(v int) *int { return &v }

func TestNextWindowFirstPoll(t *testing.T) {
	campaign := &models.Campaign{
		StartDate:      "2024-01-01",
		ScheduleType:   models.ScheduleDynamic,
		RecurrenceDays: 14,
	}

	window, err := NextWindow(campaign, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, window.SessionNumber)
	assert.Equal(t, "2024-01-01", window.StartDate)
	assert.Equal(t, "2024-01-14", window.EndDate)
}

func TestNextWindowDynamicInterval(t *testing.T) {
	tests := []struct {
		name           string
		recurrenceDays int
		lastStart      string
		wantStart      string
	}{
		{"two weeks", 14, "2024-01-01", "2024-01-15"},
		{"ten days drifts across weekdays", 10, "2024-01-01", "2024-01-11"},
		{"three weeks", 21, "2024-02-05", "2024-02-26"},
		{"across month boundary", 14, "2024-01-25", "2024-02-08"},
		{"across leap day", 7, "2024-02-26", "2024-03-04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			campaign := &models.Campaign{
				StartDate:      "2024-01-01",
				ScheduleType:   models.ScheduleDynamic,
				RecurrenceDays: tt.recurrenceDays,
			}
			last := &models.Poll{SessionNumber: 4, StartDate: tt.lastStart}

			window, err := NextWindow(campaign, last)
			require.NoError(t, err)

			assert.Equal(t, 5, window.SessionNumber)
			assert.Equal(t, tt.wantStart, window.StartDate)
		})
	}
}

func TestNextWindowDynamicChainSpacing(t *testing.T) {
	campaign := &models.Campaign{
		StartDate:      "2024-01-01",
		ScheduleType:   models.ScheduleDynamic,
		RecurrenceDays: 10,
	}

	window, err := NextWindow(campaign, nil)
	require.NoError(t, err)

	prev, err := time.Parse(models.DateLayout, window.StartDate)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		last := &models.Poll{SessionNumber: window.SessionNumber, StartDate: window.StartDate}
		window, err = NextWindow(campaign, last)
		require.NoError(t, err)

		next, err := time.Parse(models.DateLayout, window.StartDate)
		require.NoError(t, err)

		assert.Equal(t, 10*24*time.Hour, next.Sub(prev))
		prev = next
	}
}

func TestNextWindowStaticAlwaysLandsOnWeekday(t *testing.T) {
	// 2024-01-03 is a Wednesday (stored weekday 2).
	campaign := &models.Campaign{
		StartDate:      "2024-01-03",
		ScheduleType:   models.ScheduleStatic,
		RecurrenceDays: 14,
		Weekday:        intPtr(2),
	}

	window, err := NextWindow(campaign, nil)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		last := &models.Poll{SessionNumber: window.SessionNumber, StartDate: window.StartDate}
		window, err = NextWindow(campaign, last)
		require.NoError(t, err)

		start, err := time.Parse(models.DateLayout, window.StartDate)
		require.NoError(t, err)
		assert.Equal(t, time.Wednesday, start.Weekday(), "session %d start %s", window.SessionNumber, window.StartDate)
	}
}

func TestNextWindowStaticSnapsDriftForward(t *testing.T) {
	// Last poll drifted onto a Monday; target weekday is Wednesday.
	campaign := &models.Campaign{
		StartDate:      "2024-01-01",
		ScheduleType:   models.ScheduleStatic,
		RecurrenceDays: 14,
		Weekday:        intPtr(2),
	}
	last := &models.Poll{SessionNumber: 0, StartDate: "2024-01-01"} // Monday

	window, err := NextWindow(campaign, last)
	require.NoError(t, err)

	// Two weeks lands on Monday 2024-01-15, snapped to Wednesday 2024-01-17.
	assert.Equal(t, "2024-01-17", window.StartDate)
	assert.Equal(t, 1, window.SessionNumber)
}

func TestNextWindowStaticZeroAdvanceMovesFullWeek(t *testing.T) {
	// Sub-week recurrence with the chain already on the target weekday:
	// floor(3/7) weeks plus a 0-day snap would not move at all.
	campaign := &models.Campaign{
		StartDate:      "2024-01-03",
		ScheduleType:   models.ScheduleStatic,
		RecurrenceDays: 3,
		Weekday:        intPtr(2),
	}
	last := &models.Poll{SessionNumber: 2, StartDate: "2024-01-03"} // Wednesday

	window, err := NextWindow(campaign, last)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-10", window.StartDate)
}

func TestNextWindowStaticWithoutWeekdayFallsBackToDynamic(t *testing.T) {
	campaign := &models.Campaign{
		StartDate:      "2024-01-01",
		ScheduleType:   models.ScheduleStatic,
		RecurrenceDays: 10,
	}
	last := &models.Poll{SessionNumber: 0, StartDate: "2024-01-01"}

	window, err := NextWindow(campaign, last)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-11", window.StartDate)
}

func TestNextWindowVotingWindowIsFourteenDays(t *testing.T) {
	campaign := &models.Campaign{
		StartDate:      "2024-06-01",
		ScheduleType:   models.ScheduleDynamic,
		RecurrenceDays: 28,
	}

	window, err := NextWindow(campaign, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-14", window.EndDate)

	last := &models.Poll{SessionNumber: 0, StartDate: window.StartDate}
	window, err = NextWindow(campaign, last)
	require.NoError(t, err)

	// The window stays 14 days even though the recurrence is 28.
	assert.Equal(t, "2024-06-29", window.StartDate)
	assert.Equal(t, "2024-07-12", window.EndDate)
}

func TestNextWindowInvalidDates(t *testing.T) {
	campaign := &models.Campaign{StartDate: "not-a-date", RecurrenceDays: 7}
	_, err := NextWindow(campaign, nil)
	assert.Error(t, err)

	campaign.StartDate = "2024-01-01"
	_, err = NextWindow(campaign, &models.Poll{StartDate: "01/02/2024"})
	assert.Error(t, err)
}
