package handlers

import (
	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupViralityRoutes(app *fiber.App, unlocks *services.UnlockService) {
	group := app.Group("/api/virality", middleware.UserContextMiddleware())

	group.Get("/locked-content/:id", func(c *fiber.Ctx) error {
		view, err := unlocks.Gate(currentUser(c), c.Params("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(view)
	})

	// Generic progress report against one unlock method.
	group.Post("/unlock/:id", func(c *fiber.Ctx) error {
		var req struct {
			Method string `json:"method"`
			Detail string `json:"detail"`
		}
		if err := c.BodyParser(&req); err != nil || req.Method == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unlock method is required"})
		}
		userID := currentUser(c)
		contentID := c.Params("id")

		if err := unlocks.RecordProgress(userID, contentID, models.UnlockMethodKind(req.Method), req.Detail); err != nil {
			return respondErr(c, err)
		}
		view, err := unlocks.Gate(userID, contentID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(view)
	})

	// Share-to-unlock fast path used by the share sheet buttons.
	group.Post("/share-to-unlock", func(c *fiber.Ctx) error {
		var req struct {
			ContentID string `json:"content_id"`
			Platform  string `json:"platform"`
		}
		if err := c.BodyParser(&req); err != nil || req.ContentID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content_id is required"})
		}
		userID := currentUser(c)

		platforms, err := unlocks.RecordShare(userID, req.ContentID, req.Platform)
		if err != nil {
			return respondErr(c, err)
		}
		unlocked, err := unlocks.IsUnlocked(userID, req.ContentID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"unique_platforms": platforms,
			"locked":           !unlocked,
		})
	})
}
