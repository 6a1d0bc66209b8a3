package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/cartline-backend/pkg/db/types"
)

// User is a customer account. OrderIDs indexes the orders the user placed.
type User struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	FullName    string            `gorm:"column:full_name;not null"`
	Email       string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	PhoneNumber *string           `gorm:"column:phone_number"`
	OrderIDs    dbtypes.UUIDArray `gorm:"column:order_ids;type:uuid[];not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	if u.OrderIDs == nil {
		u.OrderIDs = dbtypes.UUIDArray{}
	}
	return nil
}
