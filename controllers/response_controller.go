package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"rollcall/scheduler"
	"rollcall/utils"
)

type ResponseController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Scheduler *scheduler.Service
}

func NewResponseController(db *gorm.DB, logger *log.Logger, sched *scheduler.Service) *ResponseController {
	return &ResponseController{
		DB:        db,
		Logger:    logger,
		Scheduler: sched,
	}
}

type responseKey struct {
	PollID       uint   `json:"poll_id" validate:"required"`
	PlayerID     uint   `json:"player_id" validate:"required"`
	ResponseDate string `json:"response_date" validate:"required,datetime=2006-01-02"`
}

// SaveResponse upserts one availability vote. Votes against closed polls
// are forbidden, not silently dropped.
func (rc *ResponseController) SaveResponse(c *fiber.Ctx) error {
	var input struct {
		responseKey
		Availability string `json:"availability" validate:"required,oneof=yes if_needed maybe no"`
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

	err := rc.Scheduler.SaveResponse(
		input.PollID, input.PlayerID, input.ResponseDate, input.Availability)
	if err != nil {
		return rc.responseError(c, err, "save")
	}

	return c.JSON(fiber.Map{"success": true})
}

// DeleteResponse clears one vote while its poll is still open.
func (rc *ResponseController) DeleteResponse(c *fiber.Ctx) error {
	var input responseKey

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

	err := rc.Scheduler.DeleteResponse(input.PollID, input.PlayerID, input.ResponseDate)
	if err != nil {
		return rc.responseError(c, err, "delete")
	}

	return c.JSON(fiber.Map{"success": true})
}

func (rc *ResponseController) responseError(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Poll not found",
		})
	case errors.Is(err, scheduler.ErrPollClosed):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Poll is closed",
		})
	case errors.Is(err, scheduler.ErrDateOutOfRange):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Date is outside the poll window",
		})
	}

	rc.Logger.Printf("Failed to %s response: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to " + op + " response",
	})
}
