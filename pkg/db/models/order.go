package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// Order is the immutable record materialized from a succeeded payment.
// The unique index on PaymentIntentID is what makes webhook replays
// idempotent at the storage layer.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number          string            `gorm:"column:number;not null;uniqueIndex"`
	UserID          *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	SessionKey      *string           `gorm:"column:session_key;index"`
	CartID          uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	PaymentIntentID string            `gorm:"column:payment_intent_id;not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'paid'"`
	Currency        string            `gorm:"column:currency;not null;default:'USD'"`
	ShippingAddress *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippingLine    *types.ShippingLine `gorm:"column:shipping_line;type:jsonb;serializer:json"`
	SubtotalCents   int               `gorm:"column:subtotal_cents;not null"`
	ShippingCents   int               `gorm:"column:shipping_cents;not null"`
	TaxCents        int               `gorm:"column:tax_cents;not null"`
	DiscountCents   int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a frozen copy of a cart line at the moment of payment.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName       string    `gorm:"column:product_name;not null"`
	ProductSKU        string    `gorm:"column:product_sku;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int       `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
