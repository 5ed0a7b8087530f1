package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the audit row persisted for every processor event we
// accept, whether or not it resulted in a state change.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string    `gorm:"column:event_id;not null;uniqueIndex"`
	EventType   string    `gorm:"column:event_type;not null"`
	Payload     []byte    `gorm:"column:payload;type:jsonb"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
