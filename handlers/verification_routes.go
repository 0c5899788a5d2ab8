// handlers/verification_routes.go
package handlers

import (
	"errors"

	"proofly-rewards/middleware"
	"proofly-rewards/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVerificationRoutes(app *fiber.App, verificationService *services.VerificationService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/user/verify", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil || req.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Verification code required"})
		}

		// Each named outcome gets its own message — "wrong code" and
		// "expired code" and "no code outstanding" must read differently.
		// Raw infrastructure errors stay server-side.
		if err := verificationService.Verify(userID, req.Code); err != nil {
			switch {
			case errors.Is(err, services.ErrProfileNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			case errors.Is(err, services.ErrNoCodeIssued):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No verification code outstanding — request a new one"})
			case errors.Is(err, services.ErrCodeExpired):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "That code has expired — request a new one"})
			case errors.Is(err, services.ErrCodeMismatch):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "That code is not correct"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Verification failed, please try again"})
			}
		}
		return c.JSON(fiber.Map{"message": "Account verified"})
	})

	securedGroup.Post("/user/verify/resend", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		if err := verificationService.ResendCode(userID); err != nil {
			switch {
			case errors.Is(err, services.ErrProfileNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			case errors.Is(err, services.ErrResendCooldown):
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Please wait a minute before requesting another code"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resend code, please try again"})
			}
		}
		return c.JSON(fiber.Map{"message": "Verification code sent"})
	})
}
