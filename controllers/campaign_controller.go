package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rollcall/models"
	"rollcall/scheduler"
	"rollcall/utils"
)

type CampaignController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Scheduler *scheduler.Service
}

func NewCampaignController(db *gorm.DB, logger *log.Logger, sched *scheduler.Service) *CampaignController {
	return &CampaignController{
		DB:        db,
		Logger:    logger,
		Scheduler: sched,
	}
}

type campaignInput struct {
	Name                string        `json:"name" validate:"required"`
	IsActive            bool          `json:"is_active"`
	StartDate           string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	ScheduleType        string        `json:"schedule_type" validate:"omitempty,oneof=dynamic static"`
	RecurrenceDays      int           `json:"recurrence_days" validate:"required,min=1"`
	Weekday             *int          `json:"weekday" validate:"omitempty,min=0,max=6"`
	SessionTimeStart    string        `json:"session_time_start" validate:"required,datetime=15:04"`
	SessionTimeEnd      string        `json:"session_time_end" validate:"required,datetime=15:04"`
	PollsInAdvance      *int          `json:"polls_in_advance" validate:"omitempty,min=0"`
	Timezone            string        `json:"timezone"`
	WebhookURL          string        `json:"webhook_url"`
	RespondDeadlineDays *int          `json:"respond_deadline_days" validate:"omitempty,min=0"`
	DecideDeadlineDays  *int          `json:"decide_deadline_days" validate:"omitempty,min=0"`
	Players             []playerInput `json:"players"`
}

type playerInput struct {
	Name    string `json:"name" validate:"required"`
	IsDM    bool   `json:"is_dm"`
	Mention string `json:"mention"`
}

func (ci *campaignInput) validate() error {
	if err := utils.ValidateStruct(ci); err != nil {
		return err
	}
	if ci.Timezone != "" {
		if _, err := time.LoadLocation(ci.Timezone); err != nil {
			return errors.New("unknown timezone")
		}
	}
	if ci.ScheduleType == models.ScheduleStatic && ci.Weekday == nil {
		return errors.New("weekday is required for static scheduling")
	}
	return nil
}

func (ci *campaignInput) apply(campaign *models.Campaign) {
	campaign.Name = ci.Name
	campaign.IsActive = ci.IsActive
	campaign.StartDate = ci.StartDate
	campaign.ScheduleType = ci.ScheduleType
	if campaign.ScheduleType == "" {
		campaign.ScheduleType = models.ScheduleDynamic
	}
	campaign.RecurrenceDays = ci.RecurrenceDays
	campaign.Weekday = ci.Weekday
	campaign.SessionTimeStart = ci.SessionTimeStart
	campaign.SessionTimeEnd = ci.SessionTimeEnd
	campaign.Timezone = ci.Timezone
	if campaign.Timezone == "" {
		campaign.Timezone = "UTC"
	}
	campaign.WebhookURL = ci.WebhookURL

	campaign.PollsInAdvance = 3
	if ci.PollsInAdvance != nil {
		campaign.PollsInAdvance = *ci.PollsInAdvance
	}
	campaign.RespondDeadlineDays = 14
	if ci.RespondDeadlineDays != nil {
		campaign.RespondDeadlineDays = *ci.RespondDeadlineDays
	}
	campaign.DecideDeadlineDays = 7
	if ci.DecideDeadlineDays != nil {
		campaign.DecideDeadlineDays = *ci.DecideDeadlineDays
	}
}

// GetCampaigns lists all campaigns, active first, with player and
// open-poll counts.
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	var campaigns []models.Campaign
	if err := cc.DB.Order("is_active DESC, created_at DESC").Find(&campaigns).Error; err != nil {
		cc.Logger.Printf("Failed to list campaigns: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list campaigns",
		})
	}

	result := make([]fiber.Map, 0, len(campaigns))
	for _, campaign := range campaigns {
		var playerCount, activePolls int64
		cc.DB.Model(&models.Player{}).Where("campaign_id = ?", campaign.ID).Count(&playerCount)
		cc.DB.Model(&models.Poll{}).
			Where("campaign_id = ? AND is_closed = ?", campaign.ID, false).Count(&activePolls)

		result = append(result, fiber.Map{
			"campaign":     campaign,
			"player_count": playerCount,
			"active_polls": activePolls,
		})
	}

	return c.JSON(fiber.Map{"campaigns": result})
}

// CreateCampaign creates a campaign with its players and fills the
// initial poll look-ahead. Activating it deactivates every other
// campaign inside the same transaction.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := input.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var campaign models.Campaign
	input.apply(&campaign)

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if campaign.IsActive {
			if err := deactivateAll(tx); err != nil {
				return err
			}
		}
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}
		return upsertPlayers(tx, campaign.ID, input.Players)
	})
	if err != nil {
		cc.Logger.Printf("Failed to create campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	if err := cc.Scheduler.EnsureLookahead(campaign.ID); err != nil {
		cc.Logger.Printf("Initial poll generation for campaign %d failed: %v", campaign.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      campaign.ID,
		"success": true,
	})
}

// UpdateCampaign rewrites campaign settings and upserts the submitted
// players, then tops up the look-ahead under the new schedule.
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := input.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Campaign not found",
			})
		}
		cc.Logger.Printf("Failed to load campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load campaign",
		})
	}

	input.apply(&campaign)

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if campaign.IsActive {
			if err := deactivateAll(tx); err != nil {
				return err
			}
		}
		if err := tx.Save(&campaign).Error; err != nil {
			return err
		}
		return upsertPlayers(tx, campaign.ID, input.Players)
	})
	if err != nil {
		cc.Logger.Printf("Failed to update campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}

	if err := cc.Scheduler.EnsureLookahead(campaign.ID); err != nil {
		cc.Logger.Printf("Poll generation for campaign %d failed: %v", campaign.ID, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// DeleteCampaign removes a campaign and everything that hangs off it.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Campaign not found",
			})
		}
		cc.Logger.Printf("Failed to load campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load campaign",
		})
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("poll_id IN (SELECT id FROM polls WHERE campaign_id = ?)", campaign.ID).
			Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.Poll{}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.Player{}).Error; err != nil {
			return err
		}
		return tx.Delete(&campaign).Error
	})
	if err != nil {
		cc.Logger.Printf("Failed to delete campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetCampaignPlayers lists a campaign's players by name.
func (cc *CampaignController) GetCampaignPlayers(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var players []models.Player
	if err := cc.DB.Where("campaign_id = ?", id).Order("name").Find(&players).Error; err != nil {
		cc.Logger.Printf("Failed to list players for campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list players",
		})
	}

	return c.JSON(fiber.Map{"players": players})
}

func deactivateAll(tx *gorm.DB) error {
	return tx.Model(&models.Campaign{}).
		Where("is_active = ?", true).
		Update("is_active", false).Error
}

// upsertPlayers writes the submitted roster, resolving duplicate names
// by update-in-place, then demotes all but the lowest-id DM so at most
// one player carries the flag.
func upsertPlayers(tx *gorm.DB, campaignID uint, players []playerInput) error {
	for _, p := range players {
		player := models.Player{
			CampaignID: campaignID,
			Name:       p.Name,
			IsDM:       p.IsDM,
			Mention:    p.Mention,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_dm", "mention", "updated_at"}),
		}).Create(&player).Error
		if err != nil {
			return err
		}
	}

	var dms []models.Player
	if err := tx.Where("campaign_id = ? AND is_dm = ?", campaignID, true).
		Order("id").Find(&dms).Error; err != nil {
		return err
	}
	for i := 1; i < len(dms); i++ {
		if err := tx.Model(&dms[i]).Update("is_dm", false).Error; err != nil {
			return err
		}
	}
	return nil
}
