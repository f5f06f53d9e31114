package server

import (
	"time"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ScheduleLetter handles POST /api/letters
func (s *Server) ScheduleLetter(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		ReceiverID uint   `json:"receiver_id"`
		Body       string `json:"body"`
		DeliverAt  string `json:"deliver_at"`
	}
	if err := c.BodyParser(&req); err != nil || req.ReceiverID == 0 {
		return models.RespondError(c, models.NewValidationError("receiver_id is required"))
	}

	deliverAt, err := time.Parse(time.RFC3339, req.DeliverAt)
	if err != nil {
		return models.RespondError(c,
			models.NewValidationError("deliver_at must be an RFC 3339 timestamp"))
	}

	letter, err := s.letterService.ScheduleLetter(ctx, userID, req.ReceiverID, req.Body, deliverAt)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(letter)
}

// GetSentLetters handles GET /api/letters/sent
func (s *Server) GetSentLetters(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	page, err := s.letterService.GetSentLetters(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}

// GetReceivedLetters handles GET /api/letters/received
func (s *Server) GetReceivedLetters(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	page, err := s.letterService.GetReceivedLetters(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}
