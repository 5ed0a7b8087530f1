package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
)

// Repository persists carts and their lines.
type Repository interface {
	Create(ctx context.Context, cart *models.Cart) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	repo.Base
}

// NewRepository builds a cart repository on the shared base.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.DB(ctx).Create(cart).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB(ctx).
		Preload("Items").
		First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB(ctx).
		Preload("Items").
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at desc").
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB(ctx).
		Preload("Items").
		Where("session_key = ? AND status = ?", sessionKey, enums.CartStatusActive).
		Order("created_at desc").
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Save persists the cart header and replaces its line associations.
func (r *repository) Save(ctx context.Context, cart *models.Cart) error {
	db := r.DB(ctx)
	if err := db.Session(&gorm.Session{FullSaveAssociations: true}).Save(cart).Error; err != nil {
		return err
	}
	return nil
}

func (r *repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.DB(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	result := r.DB(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
