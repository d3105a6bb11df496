package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a seller-owned catalog item. Stock never goes negative: the only
// write path that lowers it is the conditional decrement inside checkout.
// Price and currency are snapshotted into order items at purchase time, so
// later edits here never rewrite order history.
type Product struct {
	BaseModel
	SellerID     uuid.UUID       `gorm:"type:uuid;index" json:"seller_id"`
	Seller       *User           `json:"seller,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	BaseCurrency string          `gorm:"type:varchar(3)" json:"base_currency"`
	Stock        int             `json:"stock"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	SalesCount   int             `json:"sales_count"`
}

// CartItem is the mutable per-(user, product) quantity. Re-adding a product
// updates the existing row rather than duplicating it. VersionToken is the
// optimistic-concurrency token: it is compared-and-swapped on every quantity
// write so a racing browser tab surfaces a conflict instead of losing the
// update.
type CartItem struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Product      *Product  `json:"product,omitempty"`
	Quantity     int       `json:"quantity"`
	VersionToken string    `json:"version_token"`
}
