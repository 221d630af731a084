package scheduler

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rollcall/models"
)

// maxSlugAttempts bounds the collision-retry loop. Collisions are
// vanishingly rare at this slug entropy, so hitting the bound means
// something else is wrong.
const maxSlugAttempts = 10

var (
	// ErrPollClosed is returned when a vote targets a closed poll.
	ErrPollClosed = errors.New("poll is closed")
	// ErrDateOutOfRange is returned when a vote's date falls outside the
	// poll's window.
	ErrDateOutOfRange = errors.New("date is outside the poll window")
)

// Notifier delivers a fire-and-forget notification. Implementations must
// bound their own retries; the service logs and swallows any error.
type Notifier interface {
	Notify(webhookURL, title, body, link string) error
}

// Service owns the poll inventory: look-ahead generation, session number
// continuity, close/reopen transitions and response upserts.
type Service struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier Notifier
	BaseURL  string

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func NewService(db *gorm.DB, logger *log.Logger, notifier Notifier, baseURL string) *Service {
	return &Service{
		DB:       db,
		Logger:   logger,
		Notifier: notifier,
		BaseURL:  baseURL,
	}
}

// EnsureLookahead tops up a campaign's open-poll buffer. Polls whose start
// date is today-or-later in the campaign's timezone count as live; new
// polls chain forward from the highest-numbered existing poll, not from
// today.
func (s *Service) EnsureLookahead(campaignID uint) error {
	var campaign models.Campaign
	if err := s.DB.First(&campaign, campaignID).Error; err != nil {
		return err
	}

	var polls []models.Poll
	if err := s.DB.Where("campaign_id = ?", campaign.ID).
		Order("session_number DESC").Find(&polls).Error; err != nil {
		return err
	}

	today := s.campaignToday(&campaign)
	live := 0
	for _, p := range polls {
		if p.StartDate >= today {
			live++
		}
	}

	var last *models.Poll
	if len(polls) > 0 {
		last = &polls[0]
	}

	for live < campaign.PollsInAdvance {
		window, err := NextWindow(&campaign, last)
		if err != nil {
			return err
		}

		poll := models.Poll{
			CampaignID:    campaign.ID,
			SessionNumber: window.SessionNumber,
			StartDate:     window.StartDate,
			EndDate:       window.EndDate,
			IsManual:      false,
		}
		if err := s.insertPoll(&poll); err != nil {
			return err
		}
		s.notifyPollCreated(&campaign, &poll)

		last = &poll
		live++
	}

	return nil
}

// CreateManualPoll inserts a poll with a caller-supplied window,
// bypassing recurrence. The session number is still auto-assigned as
// max+1 within the campaign.
func (s *Service) CreateManualPoll(campaignID uint, startDate, endDate string, notify bool) (*models.Poll, error) {
	var campaign models.Campaign
	if err := s.DB.First(&campaign, campaignID).Error; err != nil {
		return nil, err
	}

	var maxSession int
	row := s.DB.Model(&models.Poll{}).
		Where("campaign_id = ?", campaign.ID).
		Select("COALESCE(MAX(session_number), -1)").Row()
	if err := row.Scan(&maxSession); err != nil {
		return nil, err
	}

	poll := models.Poll{
		CampaignID:    campaign.ID,
		SessionNumber: maxSession + 1,
		StartDate:     startDate,
		EndDate:       endDate,
		IsManual:      true,
	}
	if err := s.insertPoll(&poll); err != nil {
		return nil, err
	}
	if notify {
		s.notifyPollCreated(&campaign, &poll)
	}
	return &poll, nil
}

// DeletePoll removes a poll and shifts every higher session number in the
// same campaign down by one, keeping the sequence dense from 0.
func (s *Service) DeletePoll(slug string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var poll models.Poll
		if err := tx.Where("slug = ?", slug).First(&poll).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("poll_id = ?", poll.ID).
			Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&poll).Error; err != nil {
			return err
		}

		return tx.Model(&models.Poll{}).
			Where("campaign_id = ? AND session_number > ?", poll.CampaignID, poll.SessionNumber).
			UpdateColumn("session_number", gorm.Expr("session_number - 1")).Error
	})
}

// ClosePoll marks a poll closed with the chosen date, or with none to
// cancel the session. Closing an already-closed poll is a no-op and does
// not re-notify.
func (s *Service) ClosePoll(slug string, selectedDate *string) error {
	var poll models.Poll
	if err := s.DB.Where("slug = ?", slug).First(&poll).Error; err != nil {
		return err
	}
	if poll.IsClosed {
		return nil
	}

	if err := s.DB.Model(&poll).Updates(map[string]interface{}{
		"is_closed":     true,
		"selected_date": selectedDate,
	}).Error; err != nil {
		return err
	}

	var campaign models.Campaign
	if err := s.DB.First(&campaign, poll.CampaignID).Error; err != nil {
		return err
	}
	if campaign.WebhookURL == "" {
		return nil
	}

	if selectedDate != nil {
		s.notify(&campaign,
			fmt.Sprintf("📅 Scheduled: %s - Session %d", campaign.Name, poll.SessionNumber),
			fmt.Sprintf("**%s** will meet on **%s** at %s-%s %s",
				campaign.Name, *selectedDate, campaign.SessionTimeStart,
				campaign.SessionTimeEnd, campaign.Timezone),
			s.pollURL(poll.Slug))
	} else {
		s.notify(&campaign,
			fmt.Sprintf("🚫 Cancelled: %s - Session %d", campaign.Name, poll.SessionNumber),
			fmt.Sprintf("No suitable date was found for Session %d", poll.SessionNumber),
			s.pollURL(poll.Slug))
	}
	return nil
}

// ReopenPoll reverts a closed poll to open and clears its selected date.
// Reopening an open poll is a no-op.
func (s *Service) ReopenPoll(slug string) error {
	var poll models.Poll
	if err := s.DB.Where("slug = ?", slug).First(&poll).Error; err != nil {
		return err
	}
	if !poll.IsClosed {
		return nil
	}

	return s.DB.Model(&poll).Updates(map[string]interface{}{
		"is_closed":     false,
		"selected_date": nil,
	}).Error
}

// SaveResponse upserts one (poll, player, date) availability. The storage
// layer's unique index makes concurrent votes for the same key collapse
// into a single last-write-wins row.
func (s *Service) SaveResponse(pollID, playerID uint, date, availability string) error {
	var poll models.Poll
	if err := s.DB.First(&poll, pollID).Error; err != nil {
		return err
	}
	if poll.IsClosed {
		return ErrPollClosed
	}
	if date < poll.StartDate || date > poll.EndDate {
		return ErrDateOutOfRange
	}
	if !models.ValidAvailability(availability) {
		return fmt.Errorf("invalid availability %q", availability)
	}

	response := models.Response{
		PollID:       pollID,
		PlayerID:     playerID,
		ResponseDate: date,
		Availability: availability,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "poll_id"}, {Name: "player_id"}, {Name: "response_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"availability", "updated_at"}),
	}).Create(&response).Error
}

// DeleteResponse clears one vote. Responses are only mutable while the
// poll is open.
func (s *Service) DeleteResponse(pollID, playerID uint, date string) error {
	var poll models.Poll
	if err := s.DB.First(&poll, pollID).Error; err != nil {
		return err
	}
	if poll.IsClosed {
		return ErrPollClosed
	}

	return s.DB.Unscoped().
		Where("poll_id = ? AND player_id = ? AND response_date = ?", pollID, playerID, date).
		Delete(&models.Response{}).Error
}

// insertPoll allocates a checked-unique slug and inserts the poll. A lost
// check-then-insert race surfaces as a duplicate-key error and triggers a
// retry with a fresh slug.
func (s *Service) insertPoll(poll *models.Poll) error {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := s.allocateSlug()
		if err != nil {
			return err
		}
		poll.Slug = slug

		err = s.DB.Create(poll).Error
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			poll.ID = 0
			continue
		}
		return err
	}
	return fmt.Errorf("could not allocate a unique poll slug after %d attempts", maxSlugAttempts)
}

// allocateSlug generates slugs until one is free. Unscoped: retired slugs
// stay reserved so public links are never reused.
func (s *Service) allocateSlug() (string, error) {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := NewSlug()
		if err != nil {
			return "", err
		}
		var n int64
		if err := s.DB.Unscoped().Model(&models.Poll{}).
			Where("slug = ?", slug).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return slug, nil
		}
	}
	return "", fmt.Errorf("slug space exhausted after %d attempts", maxSlugAttempts)
}

// notifyPollCreated fires the one-shot creation notification and records
// the trigger. Delivery failures never roll back the poll.
func (s *Service) notifyPollCreated(campaign *models.Campaign, poll *models.Poll) {
	if campaign.WebhookURL == "" {
		return
	}

	s.notify(campaign,
		fmt.Sprintf("🎲 New poll created for %s - Session %d", campaign.Name, poll.SessionNumber),
		fmt.Sprintf("Please vote on your availability from %s to %s", poll.StartDate, poll.EndDate),
		s.pollURL(poll.Slug))

	if err := s.DB.Model(poll).UpdateColumn("notified_created", true).Error; err != nil {
		s.Logger.Printf("Failed to mark poll %s as notified: %v", poll.Slug, err)
	}
}

func (s *Service) notify(campaign *models.Campaign, title, body, link string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(campaign.WebhookURL, title, body, link); err != nil {
		s.Logger.Printf("Notification for campaign %d failed: %v", campaign.ID, err)
	}
}

func (s *Service) pollURL(slug string) string {
	return fmt.Sprintf("%s/poll/%s", s.BaseURL, slug)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) campaignToday(c *models.Campaign) string {
	return TodayIn(c.Timezone, s.now())
}

// TodayIn evaluates "today" in the given timezone, never the server's
// local time. Unknown zones fall back to UTC.
func TodayIn(tz string, now time.Time) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return now.In(loc).Format(models.DateLayout)
}
