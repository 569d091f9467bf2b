package handlers

import (
	"time"

	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupFomoRoutes(app *fiber.App, campaigns *services.CampaignService) {
	group := app.Group("/api/fomo", middleware.UserContextMiddleware())

	group.Get("/triggers", func(c *fiber.Ctx) error {
		triggers, err := campaigns.Triggers(time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"triggers": triggers})
	})

	group.Get("/live-stats", func(c *fiber.Ctx) error {
		active, err := campaigns.ActiveUsersNow(time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"active_users_now": active})
	})

	// Campaign surface for the ChallengesHub page.
	campaignGroup := app.Group("/api/campaigns", middleware.UserContextMiddleware())

	campaignGroup.Get("/active", func(c *fiber.Ctx) error {
		ctype := models.CampaignType(c.Query("type", string(models.CampaignFlashBonus)))
		campaign, err := campaigns.ActiveCampaign(ctype, time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		if campaign == nil {
			return c.JSON(fiber.Map{"active": false})
		}
		return c.JSON(fiber.Map{"active": true, "campaign": campaign})
	})

	campaignGroup.Post("/:id/participate", func(c *fiber.Ctx) error {
		campaign, err := campaigns.Participate(c.Params("id"), currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"campaign_id":       campaign.ID,
			"name":              campaign.Name,
			"multiplier":        campaign.Multiplier,
			"participant_count": campaign.ParticipantCount,
			"expires_at":        campaign.ExpiresAt,
		})
	})
}
