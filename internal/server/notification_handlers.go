package server

import (
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// GetNotifications handles GET /api/notifications
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 30)

	page, err := s.notificationService.List(ctx, userID, p.Limit, p.Cursor)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(page)
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	count, err := s.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if err := s.notificationService.MarkAllRead(ctx, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteNotifications handles DELETE /api/notifications
func (s *Server) DeleteNotifications(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if err := s.notificationService.DeleteAll(ctx, userID); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// WebsocketHandler returns the handler for GET /api/ws. Each connection is
// registered with the hub so Redis-published notifications reach the
// client live.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
