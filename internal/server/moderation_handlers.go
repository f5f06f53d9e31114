package server

import (
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// BlockUser handles POST /api/moderation/blocks/:userId
func (s *Server) BlockUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.BlockUser(ctx, userID, targetID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetBlockedUsers handles GET /api/moderation/blocks
func (s *Server) GetBlockedUsers(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	blocks, err := s.moderationService.GetBlockedUsers(ctx, userID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(blocks)
}

// ReportUser handles POST /api/moderation/reports/users/:userId
func (s *Server) ReportUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Reason       string `json:"reason"`
		AttachmentID *uint  `json:"attachment_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	report, err := s.moderationService.ReportUser(ctx, userID, targetID, req.Reason, req.AttachmentID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// ReportPost handles POST /api/moderation/reports/posts/:postId
func (s *Server) ReportPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req struct {
		Reason       string `json:"reason"`
		AttachmentID *uint  `json:"attachment_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	report, err := s.moderationService.ReportPost(ctx, userID, postID, req.Reason, req.AttachmentID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetOpenUserReports handles GET /api/admin/reports/users
func (s *Server) GetOpenUserReports(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 30)

	reports, cursor, isDone, err := s.moderationService.ListOpenUserReports(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{
		"page":            reports,
		"is_done":         isDone,
		"continue_cursor": cursor,
	})
}

// GetOpenPostReports handles GET /api/admin/reports/posts
func (s *Server) GetOpenPostReports(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 30)

	reports, cursor, isDone, err := s.moderationService.ListOpenPostReports(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{
		"page":            reports,
		"is_done":         isDone,
		"continue_cursor": cursor,
	})
}

// ResolveUserReport handles POST /api/admin/reports/users/:reportId/resolve
func (s *Server) ResolveUserReport(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	reportID, err := s.parseID(c, "reportId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.ResolveUserReport(ctx, reportID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ResolvePostReport handles POST /api/admin/reports/posts/:reportId/resolve
func (s *Server) ResolvePostReport(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	reportID, err := s.parseID(c, "reportId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.ResolvePostReport(ctx, reportID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteUserAndResolveReport handles POST /api/admin/reports/users/:reportId/delete-user
func (s *Server) DeleteUserAndResolveReport(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	reportID, err := s.parseID(c, "reportId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.DeleteUserAndResolveReport(ctx, reportID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeletePostAndResolveReport handles POST /api/admin/reports/posts/:reportId/delete-post
func (s *Server) DeletePostAndResolveReport(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	reportID, err := s.parseID(c, "reportId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.DeletePostAndResolveReport(ctx, reportID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
