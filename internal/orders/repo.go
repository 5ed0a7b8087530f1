package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/pagination"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// Repository persists and reads materialized orders.
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIntentAndIdentity(ctx context.Context, intentID string, identity types.Identity) (*models.Order, error)
	ListForIdentity(ctx context.Context, identity types.Identity, params pagination.Params) ([]models.Order, string, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	repo.Base
}

// NewRepository builds an order repository on the shared base.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIntentAndIdentity scopes the lookup to the caller so one
// shopper can never observe another's order through an intent ID.
func (r *repository) FindByIntentAndIdentity(ctx context.Context, intentID string, identity types.Identity) (*models.Order, error) {
	query := r.DB(ctx).
		Preload("Items").
		Where("payment_intent_id = ?", intentID)
	query = scopeToIdentity(query, identity)

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForIdentity(ctx context.Context, identity types.Identity, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.DB(ctx).Preload("Items")
	query = scopeToIdentity(query, identity)
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	var rows []models.Order
	if err := query.
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	next := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func scopeToIdentity(query *gorm.DB, identity types.Identity) *gorm.DB {
	if identity.IsAuthenticated() {
		return query.Where("user_id = ?", *identity.UserID)
	}
	return query.Where("session_key = ?", *identity.SessionKey)
}
