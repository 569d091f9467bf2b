package handlers

import (
	"fmt"
	"time"

	"notes-gamification-system/middleware"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGamificationRoutes(app *fiber.App, ledger *services.LedgerService, streaks *services.StreakService, ingest *services.IngestService) {
	group := app.Group("/api/gamification", middleware.UserContextMiddleware())

	group.Get("/points", func(c *fiber.Ctx) error {
		userID := currentUser(c)

		standing, err := ledger.GetStanding(userID)
		if err != nil {
			return respondErr(c, err)
		}
		toNext, pct := services.LevelProgress(standing.PointsTotal)

		return c.JSON(fiber.Map{
			"total_points":         standing.PointsTotal,
			"level":                standing.Level,
			"level_name":           services.LevelName(standing.Level),
			"points_to_next_level": toNext,
			"progress_percentage":  pct,
		})
	})

	group.Get("/streak", func(c *fiber.Ctx) error {
		userID := currentUser(c)

		standing, err := streaks.Standing(userID)
		if err != nil {
			return respondErr(c, err)
		}

		lastDate := ""
		if standing.LastActivityDate != nil {
			lastDate = *standing.LastActivityDate
		}
		return c.JSON(fiber.Map{
			"current_streak":     standing.StreakCurrent,
			"longest_streak":     standing.StreakLongest,
			"last_activity_date": lastDate,
			"next_milestone":     services.NextMilestone(standing.StreakCurrent),
		})
	})

	// Explicit daily check-in button on the StreakTracker page. Routed
	// through ingest so streak achievements evaluate right away; the per-day
	// event key keeps double-clicks harmless.
	group.Post("/streak/check-in", func(c *fiber.Ctx) error {
		userID := currentUser(c)
		now := time.Now()

		err := ingest.ProcessEvent(services.Event{
			Type:          services.EventDailyCheckin,
			UserID:        userID,
			SourceEventID: fmt.Sprintf("checkin:%s:%s", userID, now.UTC().Format(services.StreakDateLayout)),
			OccurredAt:    now,
		})
		if err != nil {
			return respondErr(c, err)
		}

		standing, err := streaks.Standing(userID)
		if err != nil {
			return respondErr(c, err)
		}
		lastDate := ""
		if standing.LastActivityDate != nil {
			lastDate = *standing.LastActivityDate
		}
		return c.JSON(fiber.Map{
			"current_streak":     standing.StreakCurrent,
			"longest_streak":     standing.StreakLongest,
			"last_activity_date": lastDate,
			"next_milestone":     services.NextMilestone(standing.StreakCurrent),
		})
	})
}
