package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus is the fulfillment state of a single order item.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusShipped    ItemStatus = "shipped"
	ItemStatusDelivered  ItemStatus = "delivered"
	ItemStatusCancelled  ItemStatus = "cancelled"
)

// OrderStatusClosed is the derived order-level status shown once every item
// has reached a terminal state. It is never stored on an item.
const OrderStatusClosed = "closed"

// IsValid checks whether the status is a known value.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusShipped,
		ItemStatusDelivered, ItemStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusDelivered || s == ItemStatusCancelled
}

// Next returns the single permitted forward successor. Sellers cannot skip
// states, so each status has exactly one.
func (s ItemStatus) Next() (ItemStatus, bool) {
	switch s {
	case ItemStatusPending:
		return ItemStatusProcessing, true
	case ItemStatusProcessing:
		return ItemStatusShipped, true
	case ItemStatusShipped:
		return ItemStatusDelivered, true
	}
	return "", false
}

// CanTransitionTo checks whether moving to target is a legal transition.
// Transitions are monotonic: the only moves are to the single forward
// successor, or to cancelled while still pending/processing.
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	if target == ItemStatusCancelled {
		return s == ItemStatusPending || s == ItemStatusProcessing
	}
	next, ok := s.Next()
	return ok && target == next
}

// Order is the immutable header written at checkout. Total = SubTotal + Tax
// at creation time and is never recomputed.
type Order struct {
	BaseModel
	OrderNumber     string          `gorm:"uniqueIndex" json:"order_number"`
	BuyerID         uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_order_buyer_key" json:"buyer_id"`
	Buyer           *User           `json:"buyer,omitempty"`
	IdempotencyKey  *string         `gorm:"uniqueIndex:idx_order_buyer_key" json:"idempotency_key,omitempty"`
	SubTotal        decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:decimal(12,2)" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	Currency        string          `gorm:"type:varchar(3)" json:"currency"`
	ShippingAddress string          `json:"shipping_address"`
	PlacedAt        time.Time       `json:"placed_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem is one purchased line. Everything describing the product (name,
// image, price, currency) is a snapshot taken at order time, and the seller
// reference is denormalized from the product, so later catalog edits or an
// ownership change leave history intact. LineTotal = PriceAtOrderTime × Quantity.
type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID        uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	SellerID         uuid.UUID       `gorm:"type:uuid;index:idx_item_seller_status" json:"seller_id"`
	ProductName      string          `json:"product_name"`
	ProductImageURL  string          `json:"product_image_url"`
	PriceAtOrderTime decimal.Decimal `gorm:"type:decimal(12,2)" json:"price_at_order_time"`
	Currency         string          `gorm:"type:varchar(3)" json:"currency"`
	Quantity         int             `json:"quantity"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(12,2)" json:"line_total"`
	Status           ItemStatus      `gorm:"index:idx_item_seller_status" json:"status"`
}

// DeriveOrderStatus computes the order-level status from its items. It is a
// pure function recomputed on every read, never stored: if all items share
// one status that status wins, otherwise the most urgent outstanding seller
// action (pending > processing > shipped) is shown, and an order whose items
// are all delivered or cancelled reads as closed.
func DeriveOrderStatus(items []OrderItem) string {
	if len(items) == 0 {
		return ""
	}

	uniform := true
	for _, it := range items[1:] {
		if it.Status != items[0].Status {
			uniform = false
			break
		}
	}
	if uniform {
		return string(items[0].Status)
	}

	for _, s := range []ItemStatus{ItemStatusPending, ItemStatusProcessing, ItemStatusShipped} {
		for _, it := range items {
			if it.Status == s {
				return string(s)
			}
		}
	}
	return OrderStatusClosed
}
