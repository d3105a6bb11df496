package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/services"
)

// CartHandler exposes the per-buyer shopping cart.
type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart lists the buyer's cart with product details preloaded.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	items, err := h.carts.List(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

type addToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// AddToCart adds a product or adjusts an existing line by a delta. A negative
// delta decreases the quantity but never below one; use the remove endpoint
// to drop the line.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	var req addToCartRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	item, err := h.carts.AddOrUpdate(c.Context(), userID, productID, req.Quantity)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

type setQuantityRequest struct {
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
	VersionToken string `json:"version_token" validate:"required"`
}

// SetQuantity replaces a cart line's quantity. The caller must echo the
// version token it last saw; a stale token gets a conflict.
func (h *CartHandler) SetQuantity(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	cartItemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid cart item id")
	}

	var req setQuantityRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	item, err := h.carts.SetQuantity(c.Context(), cartItemID, userID, req.Quantity, req.VersionToken)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// RemoveFromCart deletes a cart line. Removing an already absent line succeeds.
func (h *CartHandler) RemoveFromCart(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	cartItemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid cart item id")
	}

	if err := h.carts.Remove(c.Context(), cartItemID, userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
