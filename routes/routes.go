package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"farmdirect/market"
	"farmdirect/middleware"
	"farmdirect/realtime"
)

// Handler serves the marketplace API on top of the market service.
type Handler struct {
	svc       *market.Service
	hub       *realtime.Hub
	jwtSecret string
}

func NewHandler(svc *market.Service, hub *realtime.Hub, jwtSecret string) *Handler {
	return &Handler{svc: svc, hub: hub, jwtSecret: jwtSecret}
}

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "API is healthy",
		})
	})

	// Realtime change stream
	app.Get("/ws", middleware.Auth(h.jwtSecret), h.upgradeChanges, h.streamChanges())

	api := app.Group("/api", middleware.Auth(h.jwtSecret))
	farmer := middleware.RequireRole(middleware.RoleFarmer)

	// Product routes
	products := api.Group("/products")
	products.Get("/", h.listProducts)
	products.Get("/mine", farmer, h.listMyProducts)
	products.Get("/:id", h.getProduct)
	products.Post("/", farmer, h.createProduct)
	products.Patch("/:id", farmer, h.updateProduct)
	products.Patch("/:id/status", farmer, h.updateProductStatus)

	// Order routes
	orders := api.Group("/orders")
	orders.Post("/", h.createOrder)
	orders.Get("/", h.listOrders)
	orders.Get("/:id", h.getOrder)
	orders.Patch("/:id/status", h.transitionOrder)
	orders.Get("/:id/history", h.orderHistory)

	// Auction routes
	auctions := api.Group("/auctions")
	auctions.Post("/", farmer, h.createAuction)
	auctions.Get("/", h.listAuctions)
	auctions.Get("/:id", h.getAuctionState)
	auctions.Get("/:id/bids", h.listBids)
	auctions.Post("/:id/bids", h.placeBid)
	auctions.Post("/:id/cancel", farmer, h.cancelAuction)
	auctions.Post("/:id/close", h.closeAuction)
	auctions.Post("/:id/settle", h.settleAuction)

	// Rating routes
	ratings := api.Group("/ratings")
	ratings.Post("/", h.submitRating)
	ratings.Get("/mine", h.ratedOrders)

	users := api.Group("/users")
	users.Get("/:id/rating", h.averageRating)
	users.Get("/:id/ratings", h.listRatings)

	api.Get("/analytics", h.analytics)

	// Conversation routes
	conversations := api.Group("/conversations")
	conversations.Post("/", h.openConversation)
	conversations.Get("/", h.listConversations)
	conversations.Get("/:id/messages", h.listMessages)
	conversations.Post("/:id/messages", h.sendMessage)
	conversations.Post("/:id/read", h.markRead)

	app.Use(middleware.NotFound)
}

var statusByKind = map[string]int{
	"validation":         fiber.StatusBadRequest,
	"not_found":          fiber.StatusNotFound,
	"forbidden":          fiber.StatusForbidden,
	"rating_not_allowed": fiber.StatusForbidden,
	"invalid_transition": fiber.StatusConflict,
	"bid_rejected":       fiber.StatusConflict,
	"duplicate_rating":   fiber.StatusConflict,
	"store_unavailable":  fiber.StatusServiceUnavailable,
}

// respondError writes a market error as {"error", "kind"} plus whatever
// detail its type carries.
func respondError(c *fiber.Ctx, err error) error {
	kind := market.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	body := fiber.Map{"error": err.Error(), "kind": kind}

	var validationErr *market.ValidationError
	var bidErr *market.BidRejectedError
	var transitionErr *market.TransitionError
	switch {
	case errors.As(err, &validationErr):
		body["field"] = validationErr.Field
	case errors.As(err, &bidErr):
		body["reason"] = bidErr.Reason
		if bidErr.Reason == market.BidTooLow {
			body["minimum"] = bidErr.Minimum
		}
	case errors.As(err, &transitionErr):
		body["from"] = transitionErr.From
		body["to"] = transitionErr.To
	case status >= fiber.StatusInternalServerError:
		body["error"] = "Service temporarily unavailable"
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Failed to parse request body: " + err.Error(),
		"kind":  "validation",
	})
}
