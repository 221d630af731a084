package scheduler

import (
	"sort"
	"time"

	"rollcall/models"
)

// availabilityWeights is the tier weighting used everywhere a date is
// ranked: the poll view and the decide-reminder sweep share this one
// scorer so their rankings can never diverge.
var availabilityWeights = map[string]int{
	models.AvailabilityYes:      3,
	models.AvailabilityIfNeeded: 2,
	models.AvailabilityMaybe:    1,
	models.AvailabilityNo:       0,
}

// PollDates expands a poll's inclusive [start, end] window into the list
// of candidate dates. Unparseable bounds yield an empty list.
func PollDates(startDate, endDate string) []string {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return nil
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates
}

// ScoreDates sums response weights per date across the poll's window.
// Every date in the window appears in the result; dates nobody voted on
// score 0 and stay eligible. An explicit "no" from the DM forces that
// date's score to 0 regardless of other votes.
func ScoreDates(poll *models.Poll, players []models.Player, responses []models.Response) map[string]int {
	dmID := dmPlayerID(players)

	scores := make(map[string]int)
	vetoed := make(map[string]bool)
	for _, date := range PollDates(poll.StartDate, poll.EndDate) {
		scores[date] = 0
	}

	for _, r := range responses {
		if _, ok := scores[r.ResponseDate]; !ok {
			continue
		}
		if dmID != 0 && r.PlayerID == dmID && r.Availability == models.AvailabilityNo {
			vetoed[r.ResponseDate] = true
		}
		scores[r.ResponseDate] += availabilityWeights[r.Availability]
	}

	for date := range vetoed {
		scores[date] = 0
	}
	return scores
}

// BestDates returns every date tied for the maximum score, sorted. More
// than one entry is a tie the caller must resolve manually; this function
// never picks a winner among ties.
func BestDates(scores map[string]int) []string {
	if len(scores) == 0 {
		return nil
	}

	best := -1
	for _, s := range scores {
		if s > best {
			best = s
		}
	}

	var dates []string
	for date, s := range scores {
		if s == best {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}

// dmPlayerID returns the id of the DM-flagged player with the lowest id,
// or 0 when no player is flagged. Campaign writes demote duplicate DM
// flags, so the lowest-id rule only matters for data written before that
// invariant existed.
func dmPlayerID(players []models.Player) uint {
	var id uint
	for _, p := range players {
		if p.IsDM && (id == 0 || p.ID < id) {
			id = p.ID
		}
	}
	return id
}
