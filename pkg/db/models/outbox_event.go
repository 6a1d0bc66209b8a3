package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartline-backend/pkg/enums"
)

// OutboxEvent is a notification queued in the same transaction as its order.
// PublishedAt stays nil until the sender accepts the message.
type OutboxEvent struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	Position     int                    `gorm:"column:position;not null"`
	Kind         enums.NotificationKind `gorm:"column:kind;not null"`
	RecipientID  uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time             `gorm:"column:published_at"`
	AttemptCount int                    `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string                `gorm:"column:last_error"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
