package cart

import (
	"github.com/angelmondragon/cartline-backend/internal/pricing"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
)

// ItemView is one formatted cart line.
type ItemView struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	Quantity     int       `json:"quantity"`
	Price        string    `json:"price"`
	LineTotal    string    `json:"lineTotal"`
	ProductImage string    `json:"productImage"`
}

// View is the client-facing cart. Amounts are locale-formatted strings.
type View struct {
	Items      []ItemView `json:"items"`
	TotalPrice string     `json:"totalPrice"`
	ItemCount  int        `json:"itemCount"`
}

// NewView formats cart for output.
func NewView(cart *models.Cart, formatter money.Formatter) *View {
	view := &View{Items: make([]ItemView, 0, len(cart.Items))}
	for _, item := range cart.Items {
		view.Items = append(view.Items, ItemView{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			Price:        formatter.Format(item.UnitPriceCents),
			LineTotal:    formatter.Format(pricing.LineTotal(item.Quantity, item.UnitPriceCents)),
			ProductImage: item.ProductImage,
		})
		view.ItemCount += item.Quantity
	}
	view.TotalPrice = formatter.Format(cart.TotalPriceCents)
	return view
}
