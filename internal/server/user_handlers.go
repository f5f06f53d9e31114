package server

import (
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
		AvatarID    *uint  `json:"avatar_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:      userID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarID:    req.AvatarID,
	})
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me. This triggers the full
// account-deletion cascade.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if err := s.moderationService.DeleteAccount(ctx, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(ctx, targetID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	query := c.Query("q")
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxPaginationLimit {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	users, err := s.userService.Search(ctx, userID, query, limit, offset)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(users)
}

// SetUserAdmin handles PUT /api/admin/users/:id/admin
func (s *Server) SetUserAdmin(c *fiber.Ctx) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.SetAdmin(ctx, targetID, req.IsAdmin)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(user)
}
