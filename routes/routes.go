package routes

import (
	controller "sendloop/controllers"
	"sendloop/mailer"
	"sendloop/middleware"
	"sendloop/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps carries everything the HTTP layer needs. Wired once in main.
type Deps struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	Providers     *mailer.ProviderStore
	CampaignQueue queue.Enqueuer
	SequenceQueue queue.Enqueuer
}

func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	setupAuthRoutes(app)
	setupAPIRoutes(app, deps)
	setupTrackingRoutes(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}

func setupAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func setupAPIRoutes(app *fiber.App, deps Deps) {
	campaignController := controller.NewCampaignController(deps.DB, deps.CampaignQueue, deps.Logger)
	sequenceController := controller.NewSequenceController(deps.DB, deps.SequenceQueue, deps.Logger)
	providerController := controller.NewProviderController(deps.Providers, deps.Logger)

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Post("/:id/launch", campaignController.LaunchCampaign)

	// WebSocket route for campaign progress
	api.Get("/campaigns/:id/progress", websocket.New(campaignController.HandleCampaignProgressWS))

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Post("/:id/enroll", sequenceController.EnrollRecipients)

	// Provider routes
	provider := api.Group("/providers")
	provider.Post("/", providerController.AddProvider)
	provider.Get("/", providerController.ListProviders)

	// Address verification, rate limited per user
	api.Get("/verify/email", middleware.VerifyRateLimiter(), providerController.VerifyAddress)
}

func setupTrackingRoutes(app *fiber.App, deps Deps) {
	trackingController := controller.NewTrackingController(deps.DB, deps.Logger)

	// Tracking endpoints are hit from recipients' mail clients, no auth
	app.Get("/track/open/:messageID/:token", trackingController.TrackOpen)
	app.Get("/track/click/:messageID/:token", trackingController.TrackClick)
}
