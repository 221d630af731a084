package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"rollcall/models"
	"rollcall/scheduler"
	"rollcall/utils"
)

type PollController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Scheduler *scheduler.Service
}

func NewPollController(db *gorm.DB, logger *log.Logger, sched *scheduler.Service) *PollController {
	return &PollController{
		DB:        db,
		Logger:    logger,
		Scheduler: sched,
	}
}

// GetPolls lists every poll across campaigns, open ones first.
func (pc *PollController) GetPolls(c *fiber.Ctx) error {
	var polls []models.Poll
	if err := pc.DB.Order("is_closed ASC, start_date DESC").Find(&polls).Error; err != nil {
		pc.Logger.Printf("Failed to list polls: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list polls",
		})
	}

	campaignNames := make(map[uint]string)
	playerCounts := make(map[uint]int64)

	result := make([]fiber.Map, 0, len(polls))
	for _, poll := range polls {
		if _, ok := campaignNames[poll.CampaignID]; !ok {
			var campaign models.Campaign
			if err := pc.DB.First(&campaign, poll.CampaignID).Error; err == nil {
				campaignNames[poll.CampaignID] = campaign.Name
			}
			var n int64
			pc.DB.Model(&models.Player{}).Where("campaign_id = ?", poll.CampaignID).Count(&n)
			playerCounts[poll.CampaignID] = n
		}

		var responded int64
		pc.DB.Model(&models.Response{}).
			Where("poll_id = ?", poll.ID).
			Distinct("player_id").Count(&responded)

		result = append(result, fiber.Map{
			"poll":           poll,
			"campaign_name":  campaignNames[poll.CampaignID],
			"player_count":   playerCounts[poll.CampaignID],
			"response_count": responded,
		})
	}

	return c.JSON(fiber.Map{"polls": result})
}

// CreatePoll creates a manual poll with an explicit window. Session
// numbering still follows the campaign's sequence.
func (pc *PollController) CreatePoll(c *fiber.Ctx) error {
	var input struct {
		CampaignID       uint   `json:"campaign_id" validate:"required"`
		StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
		EndDate          string `json:"end_date" validate:"required,datetime=2006-01-02"`
		SendNotification bool   `json:"send_notification"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if input.EndDate < input.StartDate {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "end_date must not be before start_date",
		})
	}

	poll, err := pc.Scheduler.CreateManualPoll(
		input.CampaignID, input.StartDate, input.EndDate, input.SendNotification)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Campaign not found",
			})
		}
		pc.Logger.Printf("Failed to create poll: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create poll",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      poll.ID,
		"slug":    poll.Slug,
		"success": true,
	})
}

// GetPoll returns the voting view: the poll, its campaign context, the
// roster, every candidate date, all responses and the per-date scores.
func (pc *PollController) GetPoll(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var poll models.Poll
	if err := pc.DB.Where("slug = ?", slug).First(&poll).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Poll not found",
			})
		}
		pc.Logger.Printf("Failed to load poll %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load poll",
		})
	}

	var campaign models.Campaign
	if err := pc.DB.First(&campaign, poll.CampaignID).Error; err != nil {
		pc.Logger.Printf("Failed to load campaign %d: %v", poll.CampaignID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load campaign",
		})
	}

	var players []models.Player
	if err := pc.DB.Where("campaign_id = ?", campaign.ID).Order("name").Find(&players).Error; err != nil {
		pc.Logger.Printf("Failed to load players for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load players",
		})
	}

	var responses []models.Response
	if err := pc.DB.Where("poll_id = ?", poll.ID).Find(&responses).Error; err != nil {
		pc.Logger.Printf("Failed to load responses for poll %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load responses",
		})
	}

	names := make(map[uint]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	for i := range responses {
		responses[i].PlayerName = names[responses[i].PlayerID]
	}

	return c.JSON(fiber.Map{
		"poll": poll,
		"campaign": fiber.Map{
			"name":               campaign.Name,
			"session_time_start": campaign.SessionTimeStart,
			"session_time_end":   campaign.SessionTimeEnd,
			"timezone":           campaign.Timezone,
		},
		"players":     players,
		"dates":       scheduler.PollDates(poll.StartDate, poll.EndDate),
		"responses":   responses,
		"date_scores": scheduler.ScoreDates(&poll, players, responses),
	})
}

// DeletePoll removes a poll and renumbers the campaign's remaining
// sessions.
func (pc *PollController) DeletePoll(c *fiber.Ctx) error {
	slug := c.Params("slug")

	if err := pc.Scheduler.DeletePoll(slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Poll not found",
			})
		}
		pc.Logger.Printf("Failed to delete poll %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete poll",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ClosePoll closes a poll with a chosen session date, or with none to
// cancel the session.
func (pc *PollController) ClosePoll(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var input struct {
		SelectedDate *string `json:"selected_date" validate:"omitempty,datetime=2006-01-02"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := pc.Scheduler.ClosePoll(slug, input.SelectedDate); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Poll not found",
			})
		}
		pc.Logger.Printf("Failed to close poll %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to close poll",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ReopenPoll reverts a closed poll to open, clearing its selected date.
func (pc *PollController) ReopenPoll(c *fiber.Ctx) error {
	slug := c.Params("slug")

	if err := pc.Scheduler.ReopenPoll(slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Poll not found",
			})
		}
		pc.Logger.Printf("Failed to reopen poll %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reopen poll",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
