package routes

import (
	"github.com/gofiber/fiber/v2"

	"farmdirect/market"
	"farmdirect/middleware"
)

func (h *Handler) submitRating(c *fiber.Ctx) error {
	var in market.SubmitRatingInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	in.RaterID = middleware.UserID(c)

	rating, err := h.svc.SubmitRating(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rating)
}

func (h *Handler) averageRating(c *fiber.Ctx) error {
	summary, err := h.svc.GetAverageRating(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *Handler) listRatings(c *fiber.Ctx) error {
	ratings, err := h.svc.ListRatings(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ratings": ratings})
}

func (h *Handler) ratedOrders(c *fiber.Ctx) error {
	ids, err := h.svc.RatedOrderIDs(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"order_ids": ids})
}

func (h *Handler) analytics(c *fiber.Ctx) error {
	var (
		a   *market.Analytics
		err error
	)
	uid := middleware.UserID(c)
	if middleware.Role(c) == middleware.RoleFarmer {
		a, err = h.svc.FarmerAnalytics(c.UserContext(), uid, h.svc.Now())
	} else {
		a, err = h.svc.ConsumerAnalytics(c.UserContext(), uid, h.svc.Now())
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}
