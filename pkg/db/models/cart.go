package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// Cart is the single mutable basket per identity. Exactly one of
// UserID and SessionKey is set: a cart belongs to an authenticated
// user or to an anonymous browser session, never both.
type Cart struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	SessionKey      *string             `gorm:"column:session_key;index"`
	Status          enums.CartStatus    `gorm:"column:status;not null;default:'active'"`
	Currency        string              `gorm:"column:currency;not null;default:'USD'"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippingLine    *types.ShippingLine `gorm:"column:shipping_line;type:jsonb;serializer:json"`
	SubtotalCents   int                 `gorm:"column:subtotal_cents;not null;default:0"`
	ShippingCents   int                 `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents        int                 `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents   int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents      int                 `gorm:"column:total_cents;not null;default:0"`
	ConvertedAt     *time.Time          `gorm:"column:converted_at"`
	Items           []CartItem          `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalWeightGrams sums the basket weight used for shipping quotes.
func (c Cart) TotalWeightGrams() int {
	weight := 0
	for _, line := range c.Items {
		weight += line.WeightGrams * line.Quantity
	}
	return weight
}

// OwnedBy reports whether the cart belongs to the given identity pair.
func (c Cart) OwnedBy(userID *uuid.UUID, sessionKey *string) bool {
	if userID != nil {
		return c.UserID != nil && *c.UserID == *userID
	}
	if sessionKey != nil {
		return c.SessionKey != nil && *c.SessionKey == *sessionKey
	}
	return false
}
