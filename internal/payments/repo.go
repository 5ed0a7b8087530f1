package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
)

// Repository persists payment-intent attempts.
type Repository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	LatestForCart(ctx context.Context, cartID uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	repo.Base
}

// NewRepository builds a payment repository on the shared base.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Create(payment).Error
}

func (r *repository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).
		First(&payment, "payment_intent_id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) LatestForCart(ctx context.Context, cartID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at desc").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Save(payment).Error
}
