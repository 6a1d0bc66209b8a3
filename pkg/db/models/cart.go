package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the per-user cart aggregate. TotalPriceCents is derived from Items
// and rewritten on every mutation.
type Cart struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	TotalPriceCents int64      `gorm:"column:total_price_cents;not null;default:0"`
	Version         int64      `gorm:"column:version;not null;default:0"`
	CheckoutOrderID *uuid.UUID `gorm:"column:checkout_order_id;type:uuid"`
	ClaimedAt       *time.Time `gorm:"column:checkout_claimed_at"`
	Items           []CartItem `gorm:"foreignKey:CartID;references:ID"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
