package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/pkg/enums"
)

// Payment records one payment-intent attempt for a cart. AmountCents is
// frozen at intent creation; a cart whose total drifts away from it
// must mint a fresh intent before confirming.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	SessionKey      *string             `gorm:"column:session_key;index"`
	PaymentIntentID string              `gorm:"column:payment_intent_id;not null;uniqueIndex"`
	ClientSecret    string              `gorm:"column:client_secret;not null"`
	AmountCents     int                 `gorm:"column:amount_cents;not null"`
	Currency        string              `gorm:"column:currency;not null;default:'USD'"`
	Status          enums.PaymentStatus `gorm:"column:status;not null"`
	DeclineCode     string              `gorm:"column:decline_code"`
	FailureMessage  string              `gorm:"column:failure_message"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
