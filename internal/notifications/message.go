package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
)

// Sender delivers one notification. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Item is one order line as shown in a notification.
type Item struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	LineTotal   string `json:"lineTotal"`
}

// Customer carries the shipping and contact details merchants need to fulfil.
type Customer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Message is the payload handed to the mail worker. Rendering and delivery
// happen downstream.
type Message struct {
	Kind           enums.NotificationKind `json:"kind"`
	OrderID        uuid.UUID              `json:"orderId"`
	RecipientID    uuid.UUID              `json:"recipientId"`
	RecipientEmail string                 `json:"recipientEmail"`
	RecipientName  string                 `json:"recipientName"`
	Subject        string                 `json:"subject"`
	Items          []Item                 `json:"items"`
	ProductTotal   string                 `json:"productTotal,omitempty"`
	DeliveryCharge string                 `json:"deliveryCharge,omitempty"`
	Total          string                 `json:"total"`
	Customer       *Customer              `json:"customer,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// CustomerConfirmation builds the order confirmation sent to the buyer.
func CustomerConfirmation(order *models.Order, user *models.User, formatter money.Formatter) Message {
	return Message{
		Kind:           enums.NotificationKindOrderConfirmation,
		OrderID:        order.ID,
		RecipientID:    user.ID,
		RecipientEmail: user.Email,
		RecipientName:  user.FullName,
		Subject:        fmt.Sprintf("Order Confirmation - %s", order.ID),
		Items:          items(order.Items, formatter),
		ProductTotal:   formatter.Format(order.ProductTotalCents),
		DeliveryCharge: formatter.Format(order.DeliveryChargeCents),
		Total:          formatter.Format(order.TotalAmountCents),
		CreatedAt:      order.OrderDate,
	}
}

// MerchantNewOrder builds the notice for one merchant, listing only lines and
// the subtotal that belong to it.
func MerchantNewOrder(order *models.Order, merchant *models.Merchant, lines []models.OrderLineItem, subtotalCents int64, formatter money.Formatter) Message {
	return Message{
		Kind:           enums.NotificationKindMerchantNewOrder,
		OrderID:        order.ID,
		RecipientID:    merchant.ID,
		RecipientEmail: merchant.Email,
		RecipientName:  merchant.BusinessName,
		Subject:        fmt.Sprintf("New Order Received - %s", order.ID),
		Items:          items(lines, formatter),
		Total:          formatter.Format(subtotalCents),
		Customer: &Customer{
			FirstName:   order.CustomerFirstName,
			LastName:    order.CustomerLastName,
			Address:     order.CustomerAddress,
			PhoneNumber: order.CustomerPhoneNumber,
			City:        order.City,
			Country:     order.Country,
		},
		CreatedAt: order.OrderDate,
	}
}

func items(lines []models.OrderLineItem, formatter money.Formatter) []Item {
	out := make([]Item, 0, len(lines))
	for _, line := range lines {
		out = append(out, Item{
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Price:       formatter.Format(line.UnitPriceCents),
			LineTotal:   formatter.Format(line.LineTotalCents),
		})
	}
	return out
}
