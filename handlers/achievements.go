package handlers

import (
	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, achievements *services.AchievementService) {
	group := app.Group("/api/achievements", middleware.UserContextMiddleware())

	// Catalog + per-user unlock state. Hidden achievements only appear once
	// unlocked — until then the UI doesn't know they exist.
	group.Get("/all", func(c *fiber.Ctx) error {
		userID := currentUser(c)

		rows, err := achievements.Unlocked(userID)
		if err != nil {
			return respondErr(c, err)
		}
		unlockedAt := make(map[string]models.UserAchievement, len(rows))
		for _, r := range rows {
			unlockedAt[r.AchievementCode] = r
		}

		var out []fiber.Map
		for _, a := range models.AchievementCatalog {
			row, unlocked := unlockedAt[a.Code]
			if a.Hidden && !unlocked {
				continue
			}
			entry := fiber.Map{
				"code":          a.Code,
				"name":          a.Name,
				"description":   a.Description,
				"category":      a.Category,
				"rarity":        a.Rarity,
				"points_reward": a.PointsReward,
				"unlocked":      unlocked,
			}
			if unlocked {
				entry["unlocked_at"] = row.UnlockedAt
			}
			out = append(out, entry)
		}
		return c.JSON(fiber.Map{"achievements": out})
	})

	group.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := achievements.Stats(currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(stats)
	})

	// Unlock notification delivery: newest not-yet-shown unlock, if any.
	group.Get("/recent-unlock", func(c *fiber.Ctx) error {
		ua, err := achievements.RecentUnshown(currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		if ua == nil {
			return c.JSON(fiber.Map{"achievement": nil})
		}
		a := models.AchievementByCode(ua.AchievementCode)
		return c.JSON(fiber.Map{
			"achievement": fiber.Map{
				"code":          ua.AchievementCode,
				"name":          a.Name,
				"description":   a.Description,
				"rarity":        a.Rarity,
				"points_reward": a.PointsReward,
				"unlocked_at":   ua.UnlockedAt,
			},
			"shown": ua.Shown,
		})
	})

	group.Post("/mark-shown", func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil || req.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "achievement code is required"})
		}
		if err := achievements.MarkShown(currentUser(c), req.Code); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"code": req.Code, "shown": true})
	})
}
