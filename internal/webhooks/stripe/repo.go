package stripewebhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/repo"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
)

// EventRepository persists the audit row for every accepted event.
type EventRepository interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
	WithTx(tx *gorm.DB) EventRepository
}

type eventRepository struct {
	repo.Base
}

// NewEventRepository builds a webhook event repository on the shared base.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{Base: repo.NewBase(db)}
}

func (r *eventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &eventRepository{Base: repo.NewBase(tx)}
}

func (r *eventRepository) Record(ctx context.Context, event *models.WebhookEvent) error {
	return r.DB(ctx).Create(event).Error
}
