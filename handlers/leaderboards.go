package handlers

import (
	"strconv"

	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboards *services.LeaderboardService) {
	group := app.Group("/api/leaderboards", middleware.UserContextMiddleware())

	group.Get("/:scope", func(c *fiber.Ctx) error {
		scope := models.LeaderboardScope(c.Params("scope"))
		switch scope {
		case models.ScopeGlobal, models.ScopeCollege, models.ScopeDepartment:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "scope must be one of: global, college, department",
			})
		}
		topN, _ := strconv.Atoi(c.Query("top", "20"))

		view, err := leaderboards.Rank(scope, currentUser(c), topN)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"scope":       view.Scope,
			"scope_key":   view.ScopeKey,
			"rankings":    view.Rankings,
			"user_rank":   view.UserRank,
			"total_users": view.TotalUsers,
			"computed_at": view.ComputedAt,
		})
	})
}
