package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"rollcall/config"
	"rollcall/middleware"
	"rollcall/routes"
	"rollcall/scheduler"
	"rollcall/utils"
	"rollcall/worker"
)

func main() {
	logger := log.New(os.Stdout, "ROLLCALL: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	notifier := utils.NewDiscordNotifier()
	sched := scheduler.NewService(
		config.DB,
		log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags),
		notifier,
		config.AppConfig.AppURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The background sweeps must run in exactly one process instance;
	// the advisory lock decides which one.
	sweepLock, err := utils.AcquireSweepLock(ctx, config.DB)
	if err != nil {
		logger.Fatalf("Failed to check sweep lock: %v", err)
	}
	if sweepLock.Held() {
		defer sweepLock.Release(context.Background())

		pollWorker := worker.NewPollWorker(config.DB, sched,
			log.New(os.Stdout, "POLLS: ", log.LstdFlags),
			config.AppConfig.PollSweepInterval)
		go pollWorker.Start(ctx)

		notifyWorker := worker.NewNotifyWorker(config.DB, notifier,
			log.New(os.Stdout, "NOTIFY: ", log.LstdFlags),
			config.AppConfig.NotifySweepInterval,
			config.AppConfig.AppURL)
		go notifyWorker.Start(ctx)
	} else {
		logger.Println("Another instance holds the sweep lock; background sweeps disabled here")
	}

	// Setup routes
	routes.SetupRoutes(app, config.DB, sched)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
