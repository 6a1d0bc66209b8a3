package checkout

import (
	"strings"

	"github.com/angelmondragon/cartline-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/google/uuid"
)

// CustomerDetails are the shipping and contact fields captured at place-order.
type CustomerDetails struct {
	FirstName   string
	LastName    string
	Address     string
	PhoneNumber string
	City        string
	Country     string
}

func (c CustomerDetails) normalized(defaultCountry string) (CustomerDetails, error) {
	out := CustomerDetails{
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		Address:     strings.TrimSpace(c.Address),
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
		City:        strings.TrimSpace(c.City),
		Country:     strings.TrimSpace(c.Country),
	}
	if out.Country == "" {
		out.Country = defaultCountry
	}

	missing := map[string]string{}
	for field, value := range map[string]string{
		"customerFirstName":   out.FirstName,
		"customerLastName":    out.LastName,
		"customerAddress":     out.Address,
		"customerPhoneNumber": out.PhoneNumber,
		"city":                out.City,
	} {
		if value == "" {
			missing[field] = "is required"
		}
	}
	if len(missing) > 0 {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(missing)
	}
	return out, nil
}

// ConfirmInput is everything Confirm needs to turn a cart into an order.
type ConfirmInput struct {
	UserID         uuid.UUID
	Customer       CustomerDetails
	IdempotencyKey string
}

// Result is the sanitized order returned by place-order. Warnings lists the
// side effects that failed after the order became durable.
type Result struct {
	orders.OrderView
	Warnings []string `json:"warnings"`
	Replayed bool     `json:"-"`
}

// QuoteItem is one priced preview line.
type QuoteItem struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	Quantity     int       `json:"quantity"`
	Price        string    `json:"price"`
	LineTotal    string    `json:"lineTotal"`
	ProductImage string    `json:"productImage"`
}

// MerchantQuote is the preview subtotal for one merchant.
type MerchantQuote struct {
	MerchantID uuid.UUID   `json:"merchantId"`
	ProductIDs []uuid.UUID `json:"productIds"`
	Subtotal   string      `json:"subtotal"`
}

// Quote is the read-only priced breakdown returned by Preview.
type Quote struct {
	Items             []QuoteItem     `json:"items"`
	Merchants         []MerchantQuote `json:"merchants"`
	ProductTotal      string          `json:"productTotal"`
	DeliveryCharge    string          `json:"deliveryCharge"`
	TotalAmount       string          `json:"totalAmount"`
	Currency          string          `json:"currency"`
	DroppedProductIDs []uuid.UUID     `json:"droppedProductIds"`
}
