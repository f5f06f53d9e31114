package server

import (
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return models.RespondError(c, models.NewValidationError("user_id is required"))
	}

	groupID, err := s.chatService.CreateConversation(ctx, userID, req.UserID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation_group_id": groupID,
	})
}

// GetConversations handles GET /api/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	page, err := s.chatService.GetConversations(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}

// GetMessages handles GET /api/conversations/:groupId/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	groupID := c.Params("groupId")
	p := parsePagination(c, 50)

	page, err := s.chatService.GetMessages(ctx, groupID, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}

// SendMessage handles POST /api/conversations/:groupId/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	groupID := c.Params("groupId")

	var req struct {
		Type      string `json:"type"`
		Content   string `json:"content"`
		ImageID   *uint  `json:"image_id"`
		ReplyToID *uint  `json:"reply_to_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	msg, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		GroupID:   groupID,
		SenderID:  userID,
		Type:      models.MessageType(req.Type),
		Content:   req.Content,
		ImageID:   req.ImageID,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkConversationRead handles POST /api/conversations/:groupId/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	groupID := c.Params("groupId")

	if err := s.chatService.MarkConversationRead(ctx, groupID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteConversation handles DELETE /api/conversations/:groupId
func (s *Server) DeleteConversation(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	groupID := c.Params("groupId")

	if err := s.chatService.DeleteConversation(ctx, groupID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteMessage handles DELETE /api/messages/:id
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.DeleteMessage(ctx, messageID, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
