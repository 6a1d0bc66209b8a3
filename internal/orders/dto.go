package orders

import (
	"time"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
)

// ItemView is a formatted order line.
type ItemView struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	Quantity     int       `json:"quantity"`
	Price        string    `json:"price"`
	LineTotal    string    `json:"lineTotal"`
	ProductImage string    `json:"productImage"`
}

// CustomerView carries the shipping and contact fields captured at checkout.
type CustomerView struct {
	CustomerFirstName   string `json:"customerFirstName"`
	CustomerLastName    string `json:"customerLastName"`
	CustomerAddress     string `json:"customerAddress"`
	CustomerPhoneNumber string `json:"customerPhoneNumber"`
	City                string `json:"city"`
	Country             string `json:"country"`
}

// OrderView is the sanitized projection returned to customers.
type OrderView struct {
	ID             uuid.UUID           `json:"id"`
	Items          []ItemView          `json:"items"`
	ProductTotal   string              `json:"productTotal"`
	DeliveryCharge string              `json:"deliveryCharge"`
	TotalAmount    string              `json:"totalAmount"`
	Currency       string              `json:"currency"`
	OrderStatus    enums.OrderStatus   `json:"orderStatus"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	OrderDate      time.Time           `json:"orderDate"`
	CustomerView
}

// MerchantOrderView shows a merchant only its own lines of an order.
type MerchantOrderView struct {
	ID               uuid.UUID           `json:"id"`
	Items            []ItemView          `json:"items"`
	MerchantSubtotal string              `json:"merchantSubtotal"`
	TotalAmount      string              `json:"totalAmount"`
	Currency         string              `json:"currency"`
	OrderStatus      enums.OrderStatus   `json:"orderStatus"`
	PaymentStatus    enums.PaymentStatus `json:"paymentStatus"`
	OrderDate        time.Time           `json:"orderDate"`
	CustomerView
}

// NewOrderView formats order for a customer.
func NewOrderView(order *models.Order, formatter money.Formatter) OrderView {
	items := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, newItemView(item, formatter))
	}
	return OrderView{
		ID:             order.ID,
		Items:          items,
		ProductTotal:   formatter.Format(order.ProductTotalCents),
		DeliveryCharge: formatter.Format(order.DeliveryChargeCents),
		TotalAmount:    formatter.Format(order.TotalAmountCents),
		Currency:       order.Currency,
		OrderStatus:    order.OrderStatus,
		PaymentStatus:  order.PaymentStatus,
		OrderDate:      order.OrderDate,
		CustomerView:   newCustomerView(order),
	}
}

// NewMerchantOrderView formats the lines of order that belong to merchantID.
func NewMerchantOrderView(order *models.Order, merchantID uuid.UUID, formatter money.Formatter) MerchantOrderView {
	items := make([]ItemView, 0)
	var subtotal int64
	for _, item := range order.Items {
		if item.MerchantID != merchantID {
			continue
		}
		items = append(items, newItemView(item, formatter))
		subtotal += item.LineTotalCents
	}
	return MerchantOrderView{
		ID:               order.ID,
		Items:            items,
		MerchantSubtotal: formatter.Format(subtotal),
		TotalAmount:      formatter.Format(order.TotalAmountCents),
		Currency:         order.Currency,
		OrderStatus:      order.OrderStatus,
		PaymentStatus:    order.PaymentStatus,
		OrderDate:        order.OrderDate,
		CustomerView:     newCustomerView(order),
	}
}

func newItemView(item models.OrderLineItem, formatter money.Formatter) ItemView {
	return ItemView{
		ProductID:    item.ProductID,
		ProductName:  item.ProductName,
		Quantity:     item.Quantity,
		Price:        formatter.Format(item.UnitPriceCents),
		LineTotal:    formatter.Format(item.LineTotalCents),
		ProductImage: item.ProductImage,
	}
}

func newCustomerView(order *models.Order) CustomerView {
	return CustomerView{
		CustomerFirstName:   order.CustomerFirstName,
		CustomerLastName:    order.CustomerLastName,
		CustomerAddress:     order.CustomerAddress,
		CustomerPhoneNumber: order.CustomerPhoneNumber,
		City:                order.City,
		Country:             order.Country,
	}
}
