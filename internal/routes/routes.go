package routes

import (
	"github.com/gofiber/fiber/v2"

	"funnel-analytics-service/internal/controller"
)

// Register attaches all HTTP routes to the Fiber app.
func Register(app *fiber.App, funnelController controller.FunnelController) {
	api := app.Group("/api/funnel")
	api.Post("/", funnelController.ComputeFunnel)
	api.Get("/presets", funnelController.GetPresets)
	api.Get("/events", funnelController.GetEventTypes)
	api.Get("/friction", funnelController.GetFriction)
	api.Post("/latency", funnelController.ComputeLatency)
	api.Post("/price-sensitivity", funnelController.ComputePriceSensitivity)
	api.Post("/paths", funnelController.ComputePaths)
	api.Post("/cohort-recovery", funnelController.ComputeCohortRecovery)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
