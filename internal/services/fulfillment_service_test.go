package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

func createTestOrderItem(t *testing.T, db *gorm.DB, sellerID uuid.UUID, status models.ItemStatus) *models.OrderItem {
	t.Helper()
	item := &models.OrderItem{
		OrderID:          uuid.New(),
		ProductID:        uuid.New(),
		SellerID:         sellerID,
		ProductName:      "Snapshot",
		PriceAtOrderTime: decimal.RequireFromString("10.00"),
		Currency:         "THB",
		Quantity:         1,
		LineTotal:        decimal.RequireFromString("10.00"),
		Status:           status,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestFulfillment_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	item := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)

	updated, err := svc.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusProcessing, updated.Status)

	var reloaded models.OrderItem
	require.NoError(t, db.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.ItemStatusProcessing, reloaded.Status)
}

func TestFulfillment_UpdateStatus_NoSkippingStates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	item := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)

	_, err := svc.UpdateStatus(ctx, item.ID, models.ItemStatusDelivered, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, item.ID, models.ItemStatusShipped, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFulfillment_UpdateStatus_TerminalStates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	delivered := createTestOrderItem(t, db, seller.ID, models.ItemStatusDelivered)
	cancelled := createTestOrderItem(t, db, seller.ID, models.ItemStatusCancelled)

	_, err := svc.UpdateStatus(ctx, delivered.ID, models.ItemStatusCancelled, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, cancelled.ID, models.ItemStatusProcessing, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFulfillment_UpdateStatus_Forbidden(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	owner := createTestUser(t, db, models.RoleSeller)
	intruder := createTestUser(t, db, models.RoleSeller)
	item := createTestOrderItem(t, db, owner.ID, models.ItemStatusPending)

	_, err := svc.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing, intruder.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	var reloaded models.OrderItem
	require.NoError(t, db.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.ItemStatusPending, reloaded.Status)
}

func TestFulfillment_CancelItem(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)

	pending := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	cancelledItem, err := svc.CancelItem(ctx, pending.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCancelled, cancelledItem.Status)

	processing := createTestOrderItem(t, db, seller.ID, models.ItemStatusProcessing)
	_, err = svc.CancelItem(ctx, processing.ID, seller.ID)
	require.NoError(t, err)

	// Shipped lines are past the point of cancellation.
	shipped := createTestOrderItem(t, db, seller.ID, models.ItemStatusShipped)
	_, err = svc.CancelItem(ctx, shipped.ID, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFulfillment_BulkUpdateStatus_SkipsAndReports(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	pendingA := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	pendingB := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	delivered := createTestOrderItem(t, db, seller.ID, models.ItemStatusDelivered)

	result, err := svc.BulkUpdateStatus(ctx,
		[]uuid.UUID{pendingA.ID, pendingB.ID, delivered.ID},
		models.ItemStatusProcessing, seller.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{pendingA.ID, pendingB.ID}, result.Updated)
	assert.ElementsMatch(t, []uuid.UUID{delivered.ID}, result.Skipped)

	// Fresh destination structs per lookup: reusing one would carry its
	// primary key into the next query's conditions.
	var updatedRow models.OrderItem
	require.NoError(t, db.First(&updatedRow, "id = ?", pendingA.ID).Error)
	assert.Equal(t, models.ItemStatusProcessing, updatedRow.Status)

	var skippedRow models.OrderItem
	require.NoError(t, db.First(&skippedRow, "id = ?", delivered.ID).Error)
	assert.Equal(t, models.ItemStatusDelivered, skippedRow.Status)
}

func TestFulfillment_BulkUpdateStatus_DuplicateIDs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	item := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)

	// Listing the same id twice is one item, not a missing second row.
	result, err := svc.BulkUpdateStatus(ctx,
		[]uuid.UUID{item.ID, item.ID},
		models.ItemStatusProcessing, seller.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{item.ID}, result.Updated)
	assert.Empty(t, result.Skipped)
}

func TestFulfillment_BulkUpdateStatus_AuthorizationIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	other := createTestUser(t, db, models.RoleSeller)
	mine := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	foreign := createTestOrderItem(t, db, other.ID, models.ItemStatusPending)

	_, err := svc.BulkUpdateStatus(ctx,
		[]uuid.UUID{mine.ID, foreign.ID},
		models.ItemStatusProcessing, seller.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// The batch aborted before changing anything, including the owned item.
	var reloaded models.OrderItem
	require.NoError(t, db.First(&reloaded, "id = ?", mine.ID).Error)
	assert.Equal(t, models.ItemStatusPending, reloaded.Status)
}

func TestFulfillment_BulkCancel(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	pending := createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	shipped := createTestOrderItem(t, db, seller.ID, models.ItemStatusShipped)

	result, err := svc.BulkCancel(ctx, []uuid.UUID{pending.ID, shipped.ID}, seller.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{pending.ID}, result.Updated)
	assert.ElementsMatch(t, []uuid.UUID{shipped.ID}, result.Skipped)
}

func TestFulfillment_ListSellerItems(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db)
	ctx := context.Background()

	seller := createTestUser(t, db, models.RoleSeller)
	other := createTestUser(t, db, models.RoleSeller)
	createTestOrderItem(t, db, seller.ID, models.ItemStatusPending)
	createTestOrderItem(t, db, seller.ID, models.ItemStatusShipped)
	createTestOrderItem(t, db, other.ID, models.ItemStatusPending)

	items, total, err := svc.ListSellerItems(ctx, seller.ID, "", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = svc.ListSellerItems(ctx, seller.ID, models.ItemStatusShipped, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemStatusShipped, items[0].Status)
}
