package server

import (
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest handles POST /api/friends/requests/:userId
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Message string `json:"message"`
	}
	// Body is optional; requests without a message are fine.
	_ = c.BodyParser(&req)

	request, err := s.friendService.SendFriendRequest(ctx, userID, targetUserID, req.Message)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// GetPendingRequests handles GET /api/friends/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.GetPendingRequests(ctx, userID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.GetSentRequests(ctx, userID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(requests)
}

// AcceptFriendRequest handles POST /api/friends/requests/:requestId/accept
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if err := s.friendService.AcceptFriendRequest(ctx, userID, requestID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// RejectFriendRequest handles POST /api/friends/requests/:requestId/reject
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if err := s.friendService.RejectFriendRequest(ctx, userID, requestID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	page, err := s.friendService.GetFriends(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	otherUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, requestID, err := s.friendService.FriendshipStatus(ctx, userID, otherUserID)
	if err != nil {
		return models.RespondError(c, err)
	}

	resp := fiber.Map{"status": status}
	if requestID != 0 {
		resp["request_id"] = requestID
	}
	return c.JSON(resp)
}

// RemoveFriend handles DELETE /api/friends/:userId
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friendService.RemoveFriend(ctx, userID, friendID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
