package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartline-backend/pkg/enums"
)

// Order is the immutable ledger record created from a confirmed cart.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	IdempotencyKey      *string             `gorm:"column:idempotency_key"`
	ProductTotalCents   int64               `gorm:"column:product_total_cents;not null"`
	DeliveryChargeCents int64               `gorm:"column:delivery_charge_cents;not null"`
	TotalAmountCents    int64               `gorm:"column:total_amount_cents;not null"`
	Currency            string              `gorm:"column:currency;not null"`
	CustomerFirstName   string              `gorm:"column:customer_first_name;not null"`
	CustomerLastName    string              `gorm:"column:customer_last_name;not null"`
	CustomerAddress     string              `gorm:"column:customer_address;not null"`
	CustomerPhoneNumber string              `gorm:"column:customer_phone_number;not null"`
	City                string              `gorm:"column:city;not null"`
	Country             string              `gorm:"column:country;not null"`
	OrderStatus         enums.OrderStatus   `gorm:"column:order_status;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;not null"`
	OrderDate           time.Time           `gorm:"column:order_date;not null"`
	Items               []OrderLineItem     `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
