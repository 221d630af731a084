package scheduler

import (
	"fmt"
	"time"

	"rollcall/models"
)

// VotingWindowDays is the fixed length of every poll's voting window,
// independent of the campaign's recurrence length.
const VotingWindowDays = 14

// Window is one candidate poll computed by NextWindow. Dates use
// models.DateLayout; EndDate is inclusive.
type Window struct {
	SessionNumber int
	StartDate     string
	EndDate       string
}

// NextWindow computes the next poll window for a campaign given the most
// recently generated poll, or the first window when last is nil. It is a
// pure calculation; the inventory service calls it repeatedly to extend
// the look-ahead chain.
//
// Dynamic policy advances the start by exactly RecurrenceDays and may
// drift across weekdays over time. Static policy advances by
// floor(RecurrenceDays/7) weeks and then snaps forward 0-6 days to the
// configured weekday, self-correcting any drift. A static step that would
// land back on the previous start advances a full week instead so the
// chain stays strictly increasing.
func NextWindow(c *models.Campaign, last *models.Poll) (Window, error) {
	if last == nil {
		start, err := time.Parse(models.DateLayout, c.StartDate)
		if err != nil {
			return Window{}, fmt.Errorf("invalid campaign start date %q: %w", c.StartDate, err)
		}
		return newWindow(0, start), nil
	}

	base, err := time.Parse(models.DateLayout, last.StartDate)
	if err != nil {
		return Window{}, fmt.Errorf("invalid poll start date %q: %w", last.StartDate, err)
	}

	var next time.Time
	if c.ScheduleType == models.ScheduleStatic && c.Weekday != nil {
		weeks := c.RecurrenceDays / 7
		next = base.AddDate(0, 0, weeks*7)
		if offset := (*c.Weekday - isoWeekday(next) + 7) % 7; offset > 0 {
			next = next.AddDate(0, 0, offset)
		}
		if !next.After(base) {
			next = next.AddDate(0, 0, 7)
		}
	} else {
		next = base.AddDate(0, 0, c.RecurrenceDays)
	}

	return newWindow(last.SessionNumber+1, next), nil
}

func newWindow(session int, start time.Time) Window {
	return Window{
		SessionNumber: session,
		StartDate:     start.Format(models.DateLayout),
		EndDate:       start.AddDate(0, 0, VotingWindowDays-1).Format(models.DateLayout),
	}
}

// isoWeekday maps time.Weekday to the stored 0=Monday..6=Sunday
// convention.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
