package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "rollcall/controllers"
	"rollcall/middleware"
	"rollcall/scheduler"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, sched *scheduler.Service) {
	// Public auth endpoints
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/login", controller.Login)
	auth.Post("/logout", controller.Logout)

	// Initialize controllers with their respective loggers
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags), sched)
	pollController := controller.NewPollController(db, log.New(os.Stdout, "POLL: ", log.LstdFlags), sched)
	responseController := controller.NewResponseController(db, log.New(os.Stdout, "RESPONSE: ", log.LstdFlags), sched)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/players", campaignController.GetCampaignPlayers)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)

	// Poll routes
	poll := api.Group("/polls")
	poll.Get("/", pollController.GetPolls)
	poll.Post("/", pollController.CreatePoll)
	poll.Get("/:slug", pollController.GetPoll)
	poll.Delete("/:slug", pollController.DeletePoll)
	poll.Post("/:slug/close", pollController.ClosePoll)
	poll.Post("/:slug/reopen", pollController.ReopenPoll)

	// Response routes
	response := api.Group("/responses")
	response.Put("/", responseController.SaveResponse)
	response.Delete("/", responseController.DeleteResponse)
}
