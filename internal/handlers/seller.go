package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// SellerHandler is the fulfillment dashboard: order items that belong to the
// authenticated seller, and their status lifecycle.
type SellerHandler struct {
	fulfillment *services.FulfillmentService
}

func NewSellerHandler(fulfillment *services.FulfillmentService) *SellerHandler {
	return &SellerHandler{fulfillment: fulfillment}
}

// ListItems returns the seller's order items, optionally filtered by status.
func (h *SellerHandler) ListItems(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)
	pagination := utils.ParsePagination(c)

	status := models.ItemStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	items, total, err := h.fulfillment.ListSellerItems(c.Context(), sellerID, status, pagination.Limit, pagination.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateItemStatus advances a single order item one step along its lifecycle.
func (h *SellerHandler) UpdateItemStatus(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order item id")
	}

	var req itemStatusRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}
	status := models.ItemStatus(req.Status)
	if !status.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	item, err := h.fulfillment.UpdateStatus(c.Context(), itemID, status, sellerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// CancelItem cancels an order item that has not shipped yet.
func (h *SellerHandler) CancelItem(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order item id")
	}

	item, err := h.fulfillment.CancelItem(c.Context(), itemID, sellerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

type bulkStatusRequest struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,uuid"`
	Status  string   `json:"status" validate:"required"`
}

// BulkUpdateStatus applies one status change to many items. Items that cannot
// legally make the transition are skipped and reported, not errored.
func (h *SellerHandler) BulkUpdateStatus(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	var req bulkStatusRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}
	status := models.ItemStatus(req.Status)
	if !status.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	itemIDs, err := parseUUIDs(req.ItemIDs)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order item id")
	}

	result, err := h.fulfillment.BulkUpdateStatus(c.Context(), itemIDs, status, sellerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
}

type bulkCancelRequest struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,uuid"`
}

// BulkCancel cancels many items at once with the same skip-and-report rules.
func (h *SellerHandler) BulkCancel(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	var req bulkCancelRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	itemIDs, err := parseUUIDs(req.ItemIDs)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order item id")
	}

	result, err := h.fulfillment.BulkCancel(c.Context(), itemIDs, sellerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
