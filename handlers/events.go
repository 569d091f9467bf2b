package handlers

import (
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes exposes the ingest entry point to collaborators (notes
// service, signup flow). Gateway auth already guards the whole app; these
// routes carry the acting user in the payload, not in headers.
func SetupEventRoutes(app *fiber.App, ingest *services.IngestService) {
	app.Post("/internal/events", func(c *fiber.Ctx) error {
		var ev services.Event
		if err := c.BodyParser(&ev); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if err := ingest.ProcessEvent(ev); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
