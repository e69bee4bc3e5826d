package routes

import (
	"github.com/gofiber/fiber/v2"

	"farmdirect/middleware"
)

func (h *Handler) openConversation(c *fiber.Ctx) error {
	var req struct {
		ParticipantID string  `json:"participant_id"`
		ProductID     *string `json:"product_id"`
		OrderID       *string `json:"order_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	conv, err := h.svc.GetOrCreateConversation(c.UserContext(), middleware.UserID(c), req.ParticipantID, req.ProductID, req.OrderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

func (h *Handler) listConversations(c *fiber.Ctx) error {
	convs, err := h.svc.ListConversations(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

func (h *Handler) listMessages(c *fiber.Ctx) error {
	msgs, err := h.svc.ListMessages(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *Handler) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	msg, err := h.svc.SendMessage(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handler) markRead(c *fiber.Ctx) error {
	n, err := h.svc.MarkRead(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked": n})
}
