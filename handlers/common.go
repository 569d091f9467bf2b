package handlers

import (
	"errors"
	"log"

	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondErr translates the service error taxonomy into HTTP responses.
// Validation echoes the violated constraint; everything unexpected is a
// generic "try again" so UI consumers stay simple.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyAttributed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStaleCampaign):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPermission):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateEvent):
		// Idempotent no-op — absorbed, never a failure.
		return c.JSON(fiber.Map{"status": "ok", "duplicate": true})
	default:
		log.Printf("❌ [API] Internal error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong — please try again",
		})
	}
}

// currentUser pulls the gateway-supplied user id from the request context.
func currentUser(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return id
	}
	return ""
}
