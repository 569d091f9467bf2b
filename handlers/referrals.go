package handlers

import (
	"time"

	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, referrals *services.ReferralService,
	ledger *services.LedgerService, campaigns *services.CampaignService) {
	group := app.Group("/api/referrals", middleware.UserContextMiddleware())

	group.Get("/my-referral", func(c *fiber.Ctx) error {
		standing, err := ledger.GetStanding(currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"referral_code": standing.ReferralCode,
			"referred_by":   standing.ReferredBy,
		})
	})

	// Signup-time attribution. Write-once: a second code for the same user is
	// rejected with 409 and leaves no partial rows.
	group.Post("/my-referral", func(c *fiber.Ctx) error {
		var req struct {
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		ref, err := referrals.Attribute(req.ReferralCode, currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{
			"referrer_id": ref.ReferrerID,
			"code_used":   ref.ReferralCodeUsed,
		})
	})

	group.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := referrals.Stats(currentUser(c))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(stats)
	})

	// "Who's ahead/behind you" widget on the ReferralDashboard.
	group.Get("/neighbors", func(c *fiber.Ctx) error {
		rows, err := referrals.Neighbors(currentUser(c), 2)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"neighbors": rows})
	})

	// Active referral bonus window, if a flash campaign is running.
	group.Get("/active-bonus", func(c *fiber.Ctx) error {
		campaign, err := campaigns.ActiveCampaign(models.CampaignFlashBonus, time.Now())
		if err != nil {
			return respondErr(c, err)
		}
		if campaign == nil {
			return c.JSON(fiber.Map{"active": false})
		}
		return c.JSON(fiber.Map{
			"active":     true,
			"name":       campaign.Name,
			"multiplier": campaign.Multiplier,
			"expires_at": campaign.ExpiresAt,
		})
	})
}
