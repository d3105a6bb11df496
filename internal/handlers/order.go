package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// OrderHandler covers checkout and the buyer's order history.
type OrderHandler struct {
	db       *gorm.DB
	checkout *services.CheckoutService
}

func NewOrderHandler(db *gorm.DB, checkout *services.CheckoutService) *OrderHandler {
	return &OrderHandler{db: db, checkout: checkout}
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// Checkout converts the buyer's cart into an order. Clients that may retry
// on timeout should send an idempotency key (body field or Idempotency-Key
// header) so a resubmission returns the first order instead of placing a
// second one.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	var req checkoutRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	idempotencyKey := req.IdempotencyKey
	if header := c.Get("Idempotency-Key"); header != "" {
		idempotencyKey = header
	}

	order, err := h.checkout.CreateOrderFromCart(c.Context(), userID, req.ShippingAddress, idempotencyKey)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    orderView(order),
	})
}

// ListOrders returns the buyer's orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{}).Where("buyer_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := h.db.Where("buyer_id = ?", userID).
		Preload("Items").
		Order("placed_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	views := make([]fiber.Map, 0, len(orders))
	for i := range orders {
		views = append(views, orderView(&orders[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    views,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

// GetOrder returns one of the buyer's orders with its items.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.Where("id = ? AND buyer_id = ?", id, userID).
		Preload("Items").
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orderView(&order)})
}

// orderView attaches the status derived from the item statuses; it is not a
// stored column.
func orderView(order *models.Order) fiber.Map {
	return fiber.Map{
		"order":  order,
		"status": models.DeriveOrderStatus(order.Items),
	}
}
