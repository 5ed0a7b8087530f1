package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog row. Prices are integer cents and weight is
// grams so shipping math never touches floats.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;not null"`
	Description    string    `gorm:"column:description"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	WeightGrams    int       `gorm:"column:weight_grams;not null;default:0"`
	StockQuantity  int       `gorm:"column:stock_quantity;not null;default:0"`
	TrackInventory bool      `gorm:"column:track_inventory;not null;default:true"`
	AllowBackorder bool      `gorm:"column:allow_backorder;not null;default:false"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
