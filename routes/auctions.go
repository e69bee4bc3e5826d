package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"farmdirect/middleware"
)

func (h *Handler) createAuction(c *fiber.Ctx) error {
	var req struct {
		ProductID     string          `json:"product_id"`
		StartingPrice decimal.Decimal `json:"starting_price"`
		EndTime       time.Time       `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	auction, err := h.svc.CreateAuction(c.UserContext(), middleware.UserID(c), req.ProductID, req.StartingPrice, req.EndTime)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(auction)
}

func (h *Handler) listAuctions(c *fiber.Ctx) error {
	auctions, err := h.svc.ListActiveAuctions(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"auctions": auctions, "total": len(auctions)})
}

func (h *Handler) getAuctionState(c *fiber.Ctx) error {
	state, err := h.svc.GetAuctionState(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) listBids(c *fiber.Ctx) error {
	bids, err := h.svc.ListBids(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"bids": bids})
}

func (h *Handler) placeBid(c *fiber.Ctx) error {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	bid, err := h.svc.PlaceBid(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bid)
}

func (h *Handler) cancelAuction(c *fiber.Ctx) error {
	auction, err := h.svc.CancelAuction(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(auction)
}

func (h *Handler) closeAuction(c *fiber.Ctx) error {
	auction, err := h.svc.CloseAuction(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(auction)
}

// settleAuction may be called by the winner or the farmer once bidding is over.
func (h *Handler) settleAuction(c *fiber.Ctx) error {
	auction, err := h.svc.GetAuction(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	uid := middleware.UserID(c)
	winner := auction.HighestBidderID != nil && *auction.HighestBidderID == uid
	if !winner && auction.FarmerID != uid {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only the farmer or the winning bidder may settle",
			"kind":  "forbidden",
		})
	}

	order, err := h.svc.SettleAuction(c.UserContext(), auction.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
