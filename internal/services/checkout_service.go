package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

// CheckoutService converts a mutable cart into an immutable order inside a
// single transaction: it re-reads stock and price per line, conditionally
// decrements stock, snapshots price/name/image/currency into order items and
// consumes the cart. On any failure before commit nothing is observable.
type CheckoutService struct {
	db        *gorm.DB
	converter *CurrencyConverter
	tax       TaxCalculator
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(db *gorm.DB, converter *CurrencyConverter, tax TaxCalculator) *CheckoutService {
	return &CheckoutService{db: db, converter: converter, tax: tax}
}

const (
	// stockDecrementAttempts bounds the read-verify-decrement cycle when a
	// concurrent sale drains stock between the verify and the decrement.
	stockDecrementAttempts = 3
	// orderNumberAttempts bounds retries when two checkouts race for the
	// same per-day sequence number.
	orderNumberAttempts = 5
)

// CreateOrderFromCart places an order from every cart row of the user. The
// cart is always fully consumed; partial checkout of a subset of lines is
// not supported. Totals are expressed in the converter's base currency.
//
// A non-empty idempotencyKey dedupes resubmissions: two checkouts by the
// same buyer carrying the same key produce one order, with the loser of the
// race handed the winner's order instead of a duplicate.
func (s *CheckoutService) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, shippingAddress, idempotencyKey string) (*models.Order, error) {
	if idempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	var order *models.Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, err = s.createOnce(ctx, userID, shippingAddress, idempotencyKey)
		if err != nil && isDuplicateKey(err) {
			// The collision is either a concurrent duplicate submission of
			// the same key, or two checkouts racing for the same order
			// number. The first resolves to the committed order; the second
			// reruns the rolled-back transaction for the next sequence value.
			if idempotencyKey != "" {
				existing, findErr := s.findByIdempotencyKey(ctx, userID, idempotencyKey)
				if findErr == nil && existing != nil {
					return existing, nil
				}
			}
			continue
		}
		return order, err
	}
	return nil, fmt.Errorf("order number contention: %w", err)
}

func (s *CheckoutService) findByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", userID, key).
		Preload("Items").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *CheckoutService) createOnce(ctx context.Context, userID uuid.UUID, shippingAddress, idempotencyKey string) (*models.Order, error) {
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("created_at asc").Find(&cart).Error; err != nil {
			return err
		}
		if len(cart) == 0 {
			return ErrEmptyCart
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(cart))
		for _, line := range cart {
			product, err := s.decrementStock(tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, models.OrderItem{
				ProductID:        product.ID,
				SellerID:         product.SellerID,
				ProductName:      product.Name,
				ProductImageURL:  product.ImageURL,
				PriceAtOrderTime: product.Price,
				Currency:         product.BaseCurrency,
				Quantity:         line.Quantity,
				LineTotal:        lineTotal,
				Status:           models.ItemStatusPending,
			})

			inBase, err := s.converter.ToBase(ctx, lineTotal, product.BaseCurrency)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(inBase)
		}

		number, err := s.nextOrderNumber(tx, time.Now().UTC())
		if err != nil {
			return err
		}

		tax := s.tax.Tax(subtotal, shippingAddress)
		var key *string
		if idempotencyKey != "" {
			key = &idempotencyKey
		}
		order = models.Order{
			OrderNumber:     number,
			BuyerID:         userID,
			IdempotencyKey:  key,
			SubTotal:        subtotal,
			Tax:             tax,
			Total:           subtotal.Add(tax),
			Currency:        s.converter.BaseCurrency(),
			ShippingAddress: shippingAddress,
			PlacedAt:        time.Now().UTC(),
			Items:           items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// The cart is fully consumed by a successful checkout.
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// decrementStock verifies availability and applies the conditional decrement
// `stock = stock - qty WHERE stock >= qty`. Exactly one contender succeeds
// per unit of available stock; a contender whose decrement affects zero rows
// re-reads and retries a bounded number of times before giving up. The
// returned product carries the price/currency read inside the transaction,
// which is what gets snapshotted.
func (s *CheckoutService) decrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) (*models.Product, error) {
	for attempt := 0; attempt < stockDecrementAttempts; attempt++ {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
			}
			return nil, err
		}
		if !product.IsActive || product.Stock < quantity {
			return nil, &InsufficientStockError{ProductID: productID, Available: product.Stock}
		}

		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", productID, quantity).
			Updates(map[string]interface{}{
				"stock":       gorm.Expr("stock - ?", quantity),
				"sales_count": gorm.Expr("sales_count + ?", quantity),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			product.Stock -= quantity
			product.SalesCount += quantity
			return &product, nil
		}
		// A concurrent sale exhausted stock between the verify and the
		// decrement; go around again with a fresh read.
	}

	var product models.Product
	if err := tx.First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return nil, &InsufficientStockError{ProductID: productID, Available: product.Stock}
}

// nextOrderNumber produces `O-YYYYMMDD-NNN`, where NNN is a zero-padded
// sequence unique within the UTC date. The sequence outgrows its padding
// past 999 orders, so the max is taken over the parsed numeric tails rather
// than string order ("-1000" sorts below "-999"). The unique index on
// order_number is the authority; a collision between racing checkouts
// surfaces at commit and is retried by CreateOrderFromCart.
func (s *CheckoutService) nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "O-" + now.Format("20060102")

	var numbers []string
	if err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"-%").
		Pluck("order_number", &numbers).Error; err != nil {
		return "", err
	}

	seq := 0
	for _, number := range numbers {
		tail := strings.TrimPrefix(number, prefix+"-")
		if n, err := strconv.Atoi(tail); err == nil && n > seq {
			seq = n
		}
	}

	return fmt.Sprintf("%s-%03d", prefix, seq+1), nil
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
