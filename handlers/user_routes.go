// handlers/user_routes.go
package handlers

import (
	"errors"
	"strconv"

	"proofly-rewards/middleware"
	"proofly-rewards/models"
	"proofly-rewards/services"
	"proofly-rewards/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Signup: the gateway has already created the credential; we persist the
	// profile, issue the first verification code, and enqueue the referral
	// request if a code was supplied.
	securedGroup.Post("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Email        string `json:"email"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
			DisplayName  string `json:"display_name"`
			Phone        string `json:"phone"`
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		user, err := userService.CreateProfile(services.SignupInput{
			UID:          userID,
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			DisplayName:  req.DisplayName,
			Phone:        req.Phone,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			if errors.Is(err, services.ErrEmailTaken) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An account already exists for this identity"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create profile"})
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	securedGroup.Get("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		user, err := userService.GetProfile(userID)
		if err != nil {
			if errors.Is(err, services.ErrProfileNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching profile"})
		}
		return c.JSON(user)
	})

	securedGroup.Patch("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Username    *string `json:"username"`
			DisplayName *string `json:"display_name"`
			FirstName   *string `json:"first_name"`
			LastName    *string `json:"last_name"`
			Phone       *string `json:"phone"`
			IsPublic    *bool   `json:"is_public"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		user, err := userService.UpdateProfile(userID, services.ProfileUpdate{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Phone:       req.Phone,
			IsPublic:    req.IsPublic,
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUsernameTaken):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username is already taken"})
			case errors.Is(err, services.ErrProfileNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
			}
		}
		return c.JSON(user)
	})

	securedGroup.Get("/user/username-available", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		candidate := c.Query("username")
		if candidate == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username query parameter required"})
		}

		available, err := userService.UsernameAvailable(userID, candidate)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error checking username"})
		}
		return c.JSON(fiber.Map{"username": candidate, "available": available})
	})

	securedGroup.Post("/user/avatar", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		fileHeader, err := c.FormFile("avatar")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file required"})
		}

		url, err := utils.UploadAvatar(fileHeader, userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err := userService.SetAvatarURL(userID, url); err != nil {
			if errors.Is(err, services.ErrProfileNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save avatar"})
		}
		return c.JSON(fiber.Map{"avatar_url": url})
	})

	// Activity feed: the user's XP event ledger, newest first.
	securedGroup.Get("/user/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			l, err := strconv.Atoi(limitStr)
			if err != nil || l <= 0 || l > 200 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			limit = l
		}

		var events []models.XPEvent
		if err := userService.DB.
			Where("uid = ?", userID).
			Order("created_at DESC").
			Limit(limit).
			Find(&events).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching activity"})
		}
		return c.JSON(events)
	})

	// Admin backfill: mark every profile public. One-off sibling of the
	// profile flow, kept behind the admin role.
	securedGroup.Post("/admin/users/make-public", middleware.RequireRole("admin"), func(c *fiber.Ctx) error {
		count, err := userService.MakeAllProfilesPublic()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to backfill profiles"})
		}
		return c.JSON(fiber.Map{"message": "OK", "updated_count": count})
	})
}
