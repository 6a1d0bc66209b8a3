package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/cartline-backend/pkg/db/types"
)

// Merchant owns products and receives one notification per order that
// contains at least one of them.
type Merchant struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BusinessName string            `gorm:"column:business_name;not null"`
	Email        string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	PhoneNumber  *string           `gorm:"column:phone_number"`
	OrderIDs     dbtypes.UUIDArray `gorm:"column:order_ids;type:uuid[];not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Merchant) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.OrderIDs == nil {
		m.OrderIDs = dbtypes.UUIDArray{}
	}
	return nil
}
