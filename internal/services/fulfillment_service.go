package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

// FulfillmentService drives purchased order items through their status state
// machine on behalf of the owning seller.
type FulfillmentService struct {
	db *gorm.DB
}

// NewFulfillmentService constructs a FulfillmentService.
func NewFulfillmentService(db *gorm.DB) *FulfillmentService {
	return &FulfillmentService{db: db}
}

// BulkResult reports which items a batch call actually changed. Items that
// individually failed the transition rule are listed in Skipped rather than
// failing the whole batch.
type BulkResult struct {
	Updated []uuid.UUID `json:"updated"`
	Skipped []uuid.UUID `json:"skipped"`
}

// UpdateStatus moves one item to newStatus. The acting seller must own the
// item, and newStatus must be a legal transition from the current status:
// the single forward successor, or cancelled from pending/processing.
func (s *FulfillmentService) UpdateStatus(ctx context.Context, orderItemID uuid.UUID, newStatus models.ItemStatus, actingSellerID uuid.UUID) (*models.OrderItem, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("status %q: %w", newStatus, ErrInvalidTransition)
	}

	var item models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", orderItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order item %s: %w", orderItemID, ErrNotFound)
			}
			return err
		}
		if item.SellerID != actingSellerID {
			return ErrForbidden
		}
		if !item.Status.CanTransitionTo(newStatus) {
			return fmt.Errorf("%s -> %s: %w", item.Status, newStatus, ErrInvalidTransition)
		}

		item.Status = newStatus
		return tx.Model(&models.OrderItem{}).
			Where("id = ?", item.ID).
			Update("status", newStatus).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CancelItem is the special-cased transition to cancelled, permitted only
// while the item is still pending or processing.
func (s *FulfillmentService) CancelItem(ctx context.Context, orderItemID, actingSellerID uuid.UUID) (*models.OrderItem, error) {
	return s.UpdateStatus(ctx, orderItemID, models.ItemStatusCancelled, actingSellerID)
}

// BulkUpdateStatus applies the single-item transition rule independently to
// each id. Authorization is all-or-nothing: one item not owned by the acting
// seller aborts the entire batch with ErrForbidden and nothing changes.
// Items whose current status does not permit the move are skipped and
// reported, not silently ignored.
func (s *FulfillmentService) BulkUpdateStatus(ctx context.Context, orderItemIDs []uuid.UUID, newStatus models.ItemStatus, actingSellerID uuid.UUID) (*BulkResult, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("status %q: %w", newStatus, ErrInvalidTransition)
	}
	// A caller may list the same id twice; that is one item, not two.
	ids := dedupeIDs(orderItemIDs)
	if len(ids) == 0 {
		return &BulkResult{}, nil
	}

	result := &BulkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.OrderItem
		if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
			return err
		}
		if len(items) != len(ids) {
			return fmt.Errorf("batch references unknown items: %w", ErrNotFound)
		}
		for _, item := range items {
			if item.SellerID != actingSellerID {
				return ErrForbidden
			}
		}

		for _, item := range items {
			if item.Status.CanTransitionTo(newStatus) {
				result.Updated = append(result.Updated, item.ID)
			} else {
				result.Skipped = append(result.Skipped, item.ID)
			}
		}
		if len(result.Updated) == 0 {
			return nil
		}

		return tx.Model(&models.OrderItem{}).
			Where("id IN ?", result.Updated).
			Update("status", newStatus).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// BulkCancel cancels each listed item that is still pending or processing,
// under the same batch authorization rule as BulkUpdateStatus.
func (s *FulfillmentService) BulkCancel(ctx context.Context, orderItemIDs []uuid.UUID, actingSellerID uuid.UUID) (*BulkResult, error) {
	return s.BulkUpdateStatus(ctx, orderItemIDs, models.ItemStatusCancelled, actingSellerID)
}

// ListSellerItems feeds the seller dashboard: the seller's order items,
// newest first, optionally filtered by status.
func (s *FulfillmentService) ListSellerItems(ctx context.Context, sellerID uuid.UUID, status models.ItemStatus, limit, offset int) ([]models.OrderItem, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.OrderItem{}).Where("seller_id = ?", sellerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.OrderItem
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
