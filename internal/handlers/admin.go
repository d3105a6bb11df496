package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// AdminHandler holds the back-office endpoints: user management and seller
// approval.
type AdminHandler struct {
	db     *gorm.DB
	tokens *services.TokenService
}

func NewAdminHandler(db *gorm.DB, tokens *services.TokenService) *AdminHandler {
	return &AdminHandler{db: db, tokens: tokens}
}

// ListUsers returns users with pagination and an optional role filter.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		if !models.Role(role).IsValid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid role filter")
		}
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

// ApproveSeller flags a seller account as allowed to list products.
func (h *AdminHandler) ApproveSeller(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}
	if user.Role != models.RoleSeller {
		return fiber.NewError(fiber.StatusBadRequest, "user is not a seller")
	}

	if err := h.db.Model(&user).Update("is_seller_approved", true).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

// RevokeUserSessions force-logs-out every device of a user.
func (h *AdminHandler) RevokeUserSessions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.tokens.RevokeAllForUser(c.Context(), id, services.RevokeReasonLogout); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
