package handlers

import (
	"time"

	"notes-gamification-system/middleware"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, campaigns *services.CampaignService) {
	group := app.Group("/api/rewards", middleware.UserContextMiddleware())

	group.Get("/mystery-box", func(c *fiber.Ctx) error {
		state, err := campaigns.MysteryBox(currentUser(c), time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(state)
	})

	group.Post("/mystery-box/open", func(c *fiber.Ctx) error {
		points, state, err := campaigns.OpenMysteryBox(currentUser(c), time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"points_won":        points,
			"can_open":          state.CanOpen,
			"next_available_at": state.NextAvailableAt,
		})
	})
}
