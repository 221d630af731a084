package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"rollcall/models"
	"rollcall/scheduler"
)

// NotifyWorker sends the two per-poll reminders: "please respond" once
// the response deadline window opens, and the scored decision summary
// once the decision deadline window opens. Each reminder fires at most
// once per poll; the sent flag is set even when nobody needs reminding
// so the sweep never re-evaluates a settled poll.
type NotifyWorker struct {
	DB       *gorm.DB
	Notifier scheduler.Notifier
	Logger   *log.Logger
	Interval time.Duration
	BaseURL  string

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func NewNotifyWorker(db *gorm.DB, notifier scheduler.Notifier, logger *log.Logger, interval time.Duration, baseURL string) *NotifyWorker {
	return &NotifyWorker{
		DB:       db,
		Notifier: notifier,
		Logger:   logger,
		Interval: interval,
		BaseURL:  baseURL,
	}
}

func (nw *NotifyWorker) Start(ctx context.Context) {
	nw.Logger.Println("Notification worker started")
	nw.sweep()

	ticker := time.NewTicker(nw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nw.Logger.Println("Notification worker shutting down...")
			return
		case <-ticker.C:
			nw.sweep()
		}
	}
}

func (nw *NotifyWorker) sweep() {
	var polls []models.Poll
	if err := nw.DB.Where("is_closed = ?", false).Find(&polls).Error; err != nil {
		nw.Logger.Printf("Error fetching open polls: %v", err)
		return
	}

	campaigns := make(map[uint]*models.Campaign)
	for i := range polls {
		poll := &polls[i]

		campaign, ok := campaigns[poll.CampaignID]
		if !ok {
			var c models.Campaign
			if err := nw.DB.First(&c, poll.CampaignID).Error; err != nil {
				nw.Logger.Printf("Error fetching campaign %d: %v", poll.CampaignID, err)
				continue
			}
			campaign = &c
			campaigns[poll.CampaignID] = campaign
		}
		if campaign.WebhookURL == "" {
			continue
		}

		start, err := time.Parse(models.DateLayout, poll.StartDate)
		if err != nil {
			nw.Logger.Printf("Poll %s has invalid start date %q", poll.Slug, poll.StartDate)
			continue
		}
		today := scheduler.TodayIn(campaign.Timezone, nw.now())

		respondDue := start.AddDate(0, 0, -campaign.RespondDeadlineDays).Format(models.DateLayout)
		if today >= respondDue && !poll.NotifiedRespond {
			nw.sendRespondReminder(campaign, poll)
		}

		decideDue := start.AddDate(0, 0, -campaign.DecideDeadlineDays).Format(models.DateLayout)
		if today >= decideDue && !poll.NotifiedDecide {
			nw.sendDecideReminder(campaign, poll)
		}
	}
}

// sendRespondReminder pings the players who have not voted yet.
func (nw *NotifyWorker) sendRespondReminder(campaign *models.Campaign, poll *models.Poll) {
	var missing []models.Player
	err := nw.DB.Where("campaign_id = ?", campaign.ID).
		Where("id NOT IN (SELECT DISTINCT player_id FROM responses WHERE poll_id = ?)", poll.ID).
		Order("name").Find(&missing).Error
	if err != nil {
		nw.Logger.Printf("Error fetching non-responders for poll %s: %v", poll.Slug, err)
		return
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, p := range missing {
			if p.Mention != "" {
				names = append(names, p.Mention)
			} else {
				names = append(names, p.Name)
			}
		}

		nw.notify(campaign,
			fmt.Sprintf("⏰ Reminder: %s - Session %d Poll", campaign.Name, poll.SessionNumber),
			fmt.Sprintf("**Still need responses from:** %s", strings.Join(names, ", ")),
			poll.Slug)
	}

	nw.markSent(poll, "notified_respond")
}

// sendDecideReminder reports the winning date, or the tied set when the
// scores don't single one out.
func (nw *NotifyWorker) sendDecideReminder(campaign *models.Campaign, poll *models.Poll) {
	var responses []models.Response
	if err := nw.DB.Where("poll_id = ?", poll.ID).Find(&responses).Error; err != nil {
		nw.Logger.Printf("Error fetching responses for poll %s: %v", poll.Slug, err)
		return
	}

	if len(responses) > 0 {
		var players []models.Player
		if err := nw.DB.Where("campaign_id = ?", campaign.ID).Find(&players).Error; err != nil {
			nw.Logger.Printf("Error fetching players for campaign %d: %v", campaign.ID, err)
			return
		}

		scores := scheduler.ScoreDates(poll, players, responses)
		best := scheduler.BestDates(scores)

		var message string
		if len(best) == 1 {
			message = fmt.Sprintf("**Best date:** %s at %s-%s",
				best[0], campaign.SessionTimeStart, campaign.SessionTimeEnd)
		} else {
			message = fmt.Sprintf("**Tie between:** %s -- Please manually select a date!",
				strings.Join(best, ", "))
		}

		nw.notify(campaign,
			fmt.Sprintf("📊 Results: %s - Session %d", campaign.Name, poll.SessionNumber),
			message,
			poll.Slug)
	}

	nw.markSent(poll, "notified_decide")
}

func (nw *NotifyWorker) notify(campaign *models.Campaign, title, body, slug string) {
	link := fmt.Sprintf("%s/poll/%s", nw.BaseURL, slug)
	if err := nw.Notifier.Notify(campaign.WebhookURL, title, body, link); err != nil {
		nw.Logger.Printf("Notification for campaign %d failed: %v", campaign.ID, err)
	}
}

func (nw *NotifyWorker) now() time.Time {
	if nw.Now != nil {
		return nw.Now()
	}
	return time.Now()
}

func (nw *NotifyWorker) markSent(poll *models.Poll, column string) {
	if err := nw.DB.Model(poll).UpdateColumn(column, true).Error; err != nil {
		nw.Logger.Printf("Failed to mark %s on poll %s: %v", column, poll.Slug, err)
	}
}
