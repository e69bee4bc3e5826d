package routes

import (
	"github.com/gofiber/fiber/v2"

	"farmdirect/market"
	"farmdirect/middleware"
	"farmdirect/models"
)

func (h *Handler) createOrder(c *fiber.Ctx) error {
	var in market.CreateOrderInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	in.BuyerID = middleware.UserID(c)

	order, err := h.svc.CreateOrder(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// listOrders shows a farmer the orders placed with them, anyone else the
// orders they placed. ?as=buyer lets a farmer see their own purchases.
func (h *Handler) listOrders(c *fiber.Ctx) error {
	asFarmer := middleware.Role(c) == middleware.RoleFarmer && c.Query("as") != "buyer"

	orders, err := h.svc.ListOrders(c.UserContext(), market.OrderFilter{
		UserID:   middleware.UserID(c),
		AsFarmer: asFarmer,
		Status:   models.OrderStatus(c.Query("status")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders, "total": len(orders)})
}

func (h *Handler) partyOrder(c *fiber.Ctx) (*models.Order, error) {
	order, err := h.svc.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if uid := middleware.UserID(c); uid != order.BuyerID && uid != order.FarmerID {
		return nil, market.ErrForbidden
	}
	return order, nil
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	order, err := h.partyOrder(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *Handler) transitionOrder(c *fiber.Ctx) error {
	var req struct {
		Status models.OrderStatus `json:"status"`
		Notes  *string            `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.Status == "" {
		return respondError(c, &market.ValidationError{Field: "status", Message: "is required"})
	}

	id := c.Params("id")
	if err := h.svc.TransitionOrder(c.UserContext(), id, middleware.UserID(c), req.Status, req.Notes); err != nil {
		return respondError(c, err)
	}

	order, err := h.svc.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *Handler) orderHistory(c *fiber.Ctx) error {
	order, err := h.partyOrder(c)
	if err != nil {
		return respondError(c, err)
	}
	history, err := h.svc.ListOrderHistory(c.UserContext(), order.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"history": history})
}
