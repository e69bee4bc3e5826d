package routes

import (
	"github.com/gofiber/fiber/v2"

	"farmdirect/market"
	"farmdirect/middleware"
	"farmdirect/models"
)

func (h *Handler) createProduct(c *fiber.Ctx) error {
	var in market.CreateProductInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	in.FarmerID = middleware.UserID(c)

	product, err := h.svc.CreateProduct(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *Handler) listProducts(c *fiber.Ctx) error {
	products, err := h.svc.ListProducts(c.UserContext(), market.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"products": products, "total": len(products)})
}

func (h *Handler) listMyProducts(c *fiber.Ctx) error {
	products, err := h.svc.ListFarmerProducts(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"products": products, "total": len(products)})
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	product, err := h.svc.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *Handler) updateProduct(c *fiber.Ctx) error {
	var in market.UpdateProductInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}

	product, err := h.svc.UpdateProduct(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *Handler) updateProductStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.ProductStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	product, err := h.svc.UpdateProductStatus(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}
