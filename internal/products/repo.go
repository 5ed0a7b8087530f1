package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
)

// Repository exposes catalog reads plus the stock mutation used by
// order materialization.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context) ([]models.Product, error)
	DecrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a product repository on the shared base.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := r.DB(ctx).
		Where("active = ?", true).
		Order("name asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DecrementStock reduces stock within the caller's transaction, locking
// the row and flooring at zero so oversells never go negative. Products
// that do not track inventory are left untouched.
func (r *repository) DecrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error; err != nil {
		return err
	}
	if !product.TrackInventory {
		return nil
	}

	remaining := product.StockQuantity - quantity
	if remaining < 0 {
		remaining = 0
	}

	return tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", remaining).Error
}
