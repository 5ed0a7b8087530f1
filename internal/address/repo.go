package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
)

// Repository persists the per-user address book.
type Repository interface {
	Create(ctx context.Context, entry *models.AddressBookEntry) error
	GetByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.AddressBookEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AddressBookEntry, error)
	Save(ctx context.Context, entry *models.AddressBookEntry) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	repo.Base
}

// NewRepository builds an address repository on the shared base.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.AddressBookEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) GetByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.AddressBookEntry, error) {
	var entry models.AddressBookEntry
	if err := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AddressBookEntry, error) {
	var entries []models.AddressBookEntry
	if err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("is_default desc, created_at desc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Save(ctx context.Context, entry *models.AddressBookEntry) error {
	return r.DB(ctx).Save(entry).Error
}

func (r *repository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.AddressBookEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearDefault unsets the default flag across the whole book; callers
// run it inside the same transaction that promotes the new default.
func (r *repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.AddressBookEntry{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.DB(ctx).
		Model(&models.AddressBookEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
