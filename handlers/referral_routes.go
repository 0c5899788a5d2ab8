// handlers/referral_routes.go
package handlers

import (
	"errors"

	"proofly-rewards/middleware"
	"proofly-rewards/models"
	"proofly-rewards/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, referralService *services.ReferralService, userService *services.UserService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Referral stats for the Referrals screen: the user's own code, counters
	// and who they brought in. Referral failures are never surfaced to the
	// referred side — this is the referrer's view only.
	securedGroup.Get("/user/referrals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		user, err := userService.GetProfile(userID)
		if err != nil {
			if errors.Is(err, services.ErrProfileNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching profile"})
		}

		referredUIDs, err := referralService.ListReferredUIDs(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching referrals"})
		}

		return c.JSON(fiber.Map{
			"referral_code":   user.ReferralCode,
			"referrals_count": user.ReferralsCount,
			"referrals_xp":    user.ReferralsXP,
			"referred_uids":   referredUIDs,
		})
	})

	// Audit trail of the user's successful referrals.
	securedGroup.Get("/user/referrals/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var referrals []models.Referral
		if err := referralService.DB.
			Where("referrer_uid = ?", userID).
			Order("created_at DESC").
			Find(&referrals).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching referral history"})
		}
		return c.JSON(referrals)
	})

	// Request status, admin-only: terminal results of queue processing.
	securedGroup.Get("/admin/referral-requests/:id", middleware.RequireRole("admin"), func(c *fiber.Ctx) error {
		id := c.Params("id")

		var request models.ReferralRequest
		if err := referralService.DB.Where("id = ?", id).First(&request).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Referral request not found"})
		}
		return c.JSON(request)
	})
}
