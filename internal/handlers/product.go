package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// ProductHandler serves the public catalog and the seller-facing product CRUD.
type ProductHandler struct {
	db *gorm.DB
}

func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts returns active products, newest first, with pagination and an
// optional name search.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Product{}).Where("is_active = ?", true)
	if search := c.Query("q"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if sellerID := c.Query("seller_id"); sellerID != "" {
		query = query.Where("seller_id = ?", sellerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Order("created_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

// GetProduct returns a single active product by id.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var product models.Product
	if err := h.db.Where("id = ? AND is_active = ?", id, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url" validate:"omitempty,url"`
	Price        string `json:"price" validate:"required"`
	BaseCurrency string `json:"base_currency" validate:"required,len=3"`
	Stock        int    `json:"stock" validate:"gte=0"`
}

// CreateProduct adds a product for the authenticated, approved seller.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	if err := h.requireApprovedSeller(sellerID); err != nil {
		return err
	}

	var req productRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid price")
	}

	product := models.Product{
		SellerID:     sellerID,
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        price,
		BaseCurrency: req.BaseCurrency,
		Stock:        req.Stock,
		IsActive:     true,
	}
	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

type productUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Price       *string `json:"price"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateProduct patches a product owned by the authenticated seller.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var req productUpdateRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	var product models.Product
	if err := h.db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}
	if product.SellerID != sellerID {
		return fiber.NewError(fiber.StatusForbidden, "not your product")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil || price.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid price")
		}
		product.Price = price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.db.Save(&product).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct deactivates a product. Rows are kept so order item snapshots
// and carts referencing it stay resolvable.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	result := h.db.Model(&models.Product{}).
		Where("id = ? AND seller_id = ?", id, sellerID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListMyProducts returns all products owned by the seller, inactive included.
func (h *ProductHandler) ListMyProducts(c *fiber.Ctx) error {
	sellerID, _ := middleware.GetCurrentUserID(c)
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Product{}).Where("seller_id = ?", sellerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Order("created_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

func (h *ProductHandler) requireApprovedSeller(sellerID uuid.UUID) error {
	var user models.User
	if err := h.db.First(&user, "id = ?", sellerID).Error; err != nil {
		return err
	}
	if !user.IsSellerApproved {
		return fiber.NewError(fiber.StatusForbidden, "seller account not approved yet")
	}
	return nil
}
