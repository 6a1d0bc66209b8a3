package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderLineItem is a deep copy of a cart line at confirmation time, kept so the
// order survives later product or merchant changes.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	Position       int       `gorm:"column:position;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	ProductImage   string    `gorm:"column:product_image;not null;default:''"`
	MerchantID     uuid.UUID `gorm:"column:merchant_id;type:uuid;not null;index"`
}

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
