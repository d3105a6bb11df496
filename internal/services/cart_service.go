package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

// CartService owns the per-user mutable cart rows. Quantity writes are
// guarded by an optimistic-concurrency token because two browser tabs or a
// background sync can race on the same row; conflicts are detected and
// surfaced instead of silently taking the last write.
type CartService struct {
	db *gorm.DB
}

// NewCartService constructs a CartService.
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// addOrUpdateAttempts bounds internal retries when an increment races with
// another writer on the same row.
const addOrUpdateAttempts = 3

// AddOrUpdate adds a product to the user's cart, or increments the quantity
// of the existing row for that product. A fresh row starts at max(1, delta).
// The resulting quantity must not exceed the product's current stock.
func (s *CartService) AddOrUpdate(ctx context.Context, userID, productID uuid.UUID, delta int) (*models.CartItem, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	for attempt := 0; attempt < addOrUpdateAttempts; attempt++ {
		var item models.CartItem
		err := s.db.WithContext(ctx).
			First(&item, "user_id = ? AND product_id = ?", userID, productID).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			quantity := delta
			if quantity < 1 {
				quantity = 1
			}
			if quantity > product.Stock {
				return nil, &InsufficientStockError{ProductID: productID, Available: product.Stock}
			}
			item = models.CartItem{
				UserID:       userID,
				ProductID:    productID,
				Quantity:     quantity,
				VersionToken: uuid.NewString(),
			}
			if createErr := s.db.WithContext(ctx).Create(&item).Error; createErr != nil {
				// A concurrent first add can win the unique (user, product)
				// slot between our read and create; fall through and retry
				// as an increment.
				continue
			}
			return &item, nil
		}
		if err != nil {
			return nil, err
		}

		newQuantity := item.Quantity + delta
		if newQuantity < 1 {
			newQuantity = 1
		}
		if newQuantity > product.Stock {
			return nil, &InsufficientStockError{ProductID: productID, Available: product.Stock}
		}

		newToken := uuid.NewString()
		res := s.db.WithContext(ctx).Model(&models.CartItem{}).
			Where("id = ? AND version_token = ?", item.ID, item.VersionToken).
			Updates(map[string]interface{}{
				"quantity":      newQuantity,
				"version_token": newToken,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			item.Quantity = newQuantity
			item.VersionToken = newToken
			return &item, nil
		}
		// Lost the CAS to another writer; re-read and retry the increment.
	}

	return nil, ErrConcurrencyConflict
}

// SetQuantity replaces the quantity of a cart row. The stored version token
// must match expectedVersion or the call fails with ErrConcurrencyConflict,
// meaning another request modified the row first and the caller must
// re-fetch. On success the version token is regenerated.
func (s *CartService) SetQuantity(ctx context.Context, cartItemID, userID uuid.UUID, newQuantity int, expectedVersion string) (*models.CartItem, error) {
	if newQuantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}

	var item models.CartItem
	if err := s.db.WithContext(ctx).
		First(&item, "id = ? AND user_id = ?", cartItemID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart item %s: %w", cartItemID, ErrNotFound)
		}
		return nil, err
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", item.ProductID).Error; err != nil {
		return nil, err
	}
	if newQuantity > product.Stock {
		return nil, &InsufficientStockError{ProductID: product.ID, Available: product.Stock}
	}

	newToken := uuid.NewString()
	res := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND version_token = ?", cartItemID, expectedVersion).
		Updates(map[string]interface{}{
			"quantity":      newQuantity,
			"version_token": newToken,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrencyConflict
	}

	item.Quantity = newQuantity
	item.VersionToken = newToken
	return &item, nil
}

// Remove deletes a cart row. Deleting an already-deleted row is not an
// error: removal is idempotent from the caller's perspective, so no version
// check is needed.
func (s *CartService) Remove(ctx context.Context, cartItemID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cartItemID, userID).
		Delete(&models.CartItem{}).Error
}

// List returns the user's cart rows with their products loaded.
func (s *CartService) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error
	return items, err
}
