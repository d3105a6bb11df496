package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bazaar/internal/models"
)

func TestCartService_AddOrUpdate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "100.00", "THB", 10)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.NotEmpty(t, item.VersionToken)

	// Re-adding the same product increments the existing row.
	firstToken := item.VersionToken
	item, err = svc.AddOrUpdate(ctx, buyer.ID, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.NotEqual(t, firstToken, item.VersionToken)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).
		Where("user_id = ?", buyer.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCartService_AddOrUpdate_FlooredAtOne(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 5)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
}

func TestCartService_AddOrUpdate_InsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 3)

	_, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 4)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Available)
}

func TestCartService_AddOrUpdate_InactiveProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 3)
	require.NoError(t, db.Model(product).Update("is_active", false).Error)

	_, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_SetQuantity(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 10)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 2)
	require.NoError(t, err)

	updated, err := svc.SetQuantity(ctx, item.ID, buyer.ID, 7, item.VersionToken)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)
	assert.NotEqual(t, item.VersionToken, updated.VersionToken)
}

func TestCartService_SetQuantity_ConcurrencyConflict(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 10)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 2)
	require.NoError(t, err)
	staleToken := item.VersionToken

	// Another request updates the row first.
	_, err = svc.SetQuantity(ctx, item.ID, buyer.ID, 3, staleToken)
	require.NoError(t, err)

	_, err = svc.SetQuantity(ctx, item.ID, buyer.ID, 4, staleToken)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	// The conflicting write did not go through.
	var current models.CartItem
	require.NoError(t, db.First(&current, "id = ?", item.ID).Error)
	assert.Equal(t, 3, current.Quantity)
}

func TestCartService_SetQuantity_StockBound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 5)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = svc.SetQuantity(ctx, item.ID, buyer.ID, 6, item.VersionToken)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
}

func TestCartService_Remove_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCartService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	buyer := createTestUser(t, db, models.RoleBuyer)
	product := createTestProduct(t, db, seller.ID, "10.00", "THB", 5)

	item, err := svc.AddOrUpdate(ctx, buyer.ID, product.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, item.ID, buyer.ID))
	// Removing the already-deleted row is still not an error.
	require.NoError(t, svc.Remove(ctx, item.ID, buyer.ID))

	items, err := svc.List(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
