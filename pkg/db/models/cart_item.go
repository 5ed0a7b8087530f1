package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one product line in a cart. UnitPriceCents is snapshotted
// at add time so catalog repricing never mutates an open basket.
type CartItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductName       string    `gorm:"column:product_name;not null"`
	ProductSKU        string    `gorm:"column:product_sku;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null"`
	WeightGrams       int       `gorm:"column:weight_grams;not null;default:0"`
	LineSubtotalCents int       `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
