package controller

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"rollcall/models"
	"rollcall/scheduler"
)

var weekdayNames = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// GetCampaignStats reports a campaign's schedule health: the next
// upcoming poll, response rates on open polls, past session history,
// per-player attendance and, for dynamic campaigns, which weekday has
// historically won.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
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

	today := scheduler.TodayIn(campaign.Timezone, time.Now())

	var nextPoll *models.Poll
	var candidate models.Poll
	err = cc.DB.Where("campaign_id = ? AND is_closed = ? AND start_date >= ?", campaign.ID, false, today).
		Order("start_date ASC").First(&candidate).Error
	if err == nil {
		nextPoll = &candidate
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		cc.Logger.Printf("Failed to find next poll for campaign %d: %v", id, err)
	}

	var totalPlayers int64
	cc.DB.Model(&models.Player{}).Where("campaign_id = ?", campaign.ID).Count(&totalPlayers)

	var openPolls []models.Poll
	cc.DB.Where("campaign_id = ? AND is_closed = ?", campaign.ID, false).
		Order("start_date ASC").Find(&openPolls)

	activePolls := make([]fiber.Map, 0, len(openPolls))
	for _, poll := range openPolls {
		var responded int64
		cc.DB.Model(&models.Response{}).
			Where("poll_id = ?", poll.ID).
			Distinct("player_id").Count(&responded)

		activePolls = append(activePolls, fiber.Map{
			"id":             poll.ID,
			"slug":           poll.Slug,
			"session_number": poll.SessionNumber,
			"start_date":     poll.StartDate,
			"end_date":       poll.EndDate,
			"response_rate":  fmt.Sprintf("%d/%d", responded, totalPlayers),
		})
	}

	var pastSessions []models.Poll
	cc.DB.Where("campaign_id = ? AND is_closed = ? AND selected_date IS NOT NULL", campaign.ID, true).
		Order("selected_date DESC").Limit(10).Find(&pastSessions)

	var totalSessions int64
	cc.DB.Model(&models.Poll{}).
		Where("campaign_id = ? AND is_closed = ? AND selected_date IS NOT NULL", campaign.ID, true).
		Count(&totalSessions)

	attendance, err := cc.playerAttendance(campaign.ID, totalSessions)
	if err != nil {
		cc.Logger.Printf("Failed to compute attendance for campaign %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute attendance",
		})
	}

	var bestDateInfo fiber.Map
	if campaign.ScheduleType == models.ScheduleDynamic {
		bestDateInfo = cc.bestWeekday(campaign.ID)
	}

	return c.JSON(fiber.Map{
		"campaign":          campaign,
		"next_poll":         nextPoll,
		"active_polls":      activePolls,
		"past_sessions":     pastSessions,
		"total_sessions":    totalSessions,
		"player_attendance": attendance,
		"best_date_info":    bestDateInfo,
	})
}

// playerAttendance counts, per player, the closed sessions where they had
// voted yes or if_needed on the date that was eventually selected.
func (cc *CampaignController) playerAttendance(campaignID uint, totalSessions int64) ([]fiber.Map, error) {
	var players []models.Player
	if err := cc.DB.Where("campaign_id = ?", campaignID).Find(&players).Error; err != nil {
		return nil, err
	}

	attendance := make([]fiber.Map, 0, len(players))
	for _, player := range players {
		var attended int64
		err := cc.DB.Model(&models.Response{}).
			Joins("JOIN polls ON polls.id = responses.poll_id").
			Where("polls.campaign_id = ? AND responses.player_id = ?", campaignID, player.ID).
			Where("polls.is_closed = ? AND polls.selected_date IS NOT NULL", true).
			Where("responses.response_date = polls.selected_date").
			Where("responses.availability IN ?", []string{models.AvailabilityYes, models.AvailabilityIfNeeded}).
			Count(&attended).Error
		if err != nil {
			return nil, err
		}

		percentage := 0.0
		if totalSessions > 0 {
			percentage = float64(attended) / float64(totalSessions) * 100
		}
		attendance = append(attendance, fiber.Map{
			"name":       player.Name,
			"attended":   attended,
			"total":      totalSessions,
			"percentage": percentage,
		})
	}

	sort.Slice(attendance, func(i, j int) bool {
		return attendance[i]["percentage"].(float64) > attendance[j]["percentage"].(float64)
	})
	return attendance, nil
}

// bestWeekday tallies which weekday past sessions landed on. Only
// meaningful for dynamic campaigns, where the day is allowed to drift.
func (cc *CampaignController) bestWeekday(campaignID uint) fiber.Map {
	var selectedDates []string
	cc.DB.Model(&models.Poll{}).
		Where("campaign_id = ? AND is_closed = ? AND selected_date IS NOT NULL", campaignID, true).
		Pluck("selected_date", &selectedDates)
	if len(selectedDates) == 0 {
		return nil
	}

	counts := make(map[int]int)
	for _, date := range selectedDates {
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			continue
		}
		counts[(int(d.Weekday())+6)%7]++
	}
	if len(counts) == 0 {
		return nil
	}

	best := -1
	for weekday, n := range counts {
		if best == -1 || n > counts[best] || (n == counts[best] && weekday < best) {
			best = weekday
		}
	}

	return fiber.Map{
		"weekday": weekdayNames[best],
		"count":   counts[best],
		"total":   len(selectedDates),
	}
}
