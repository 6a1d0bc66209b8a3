package checkout

import (
	"context"

	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/pricing"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Preview prices the user's cart without persisting anything. Lines whose
// product no longer resolves are left out and reported in DroppedProductIDs.
func (s *service) Preview(ctx context.Context, userID uuid.UUID) (*Quote, error) {
	c, err := s.loadCheckoutCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	live, err := s.products.GetMany(ctx, productIDs(c.Items))
	if err != nil {
		return nil, err
	}

	kept := make([]models.CartItem, 0, len(c.Items))
	dropped := make([]uuid.UUID, 0)
	for _, item := range c.Items {
		product, ok := live[item.ProductID]
		if !ok {
			dropped = append(dropped, item.ProductID)
			continue
		}
		item.MerchantID = product.MerchantID
		kept = append(kept, item)
	}
	if len(kept) == 0 {
		return nil, errCartEmpty
	}

	lines := cart.Lines(kept)
	productTotal := pricing.CartTotal(lines)

	quote := &Quote{
		Items:             make([]QuoteItem, 0, len(kept)),
		ProductTotal:      s.formatter.Format(productTotal),
		DeliveryCharge:    s.formatter.Format(s.cfg.DeliveryChargeCents),
		TotalAmount:       s.formatter.Format(pricing.OrderTotal(productTotal, s.cfg.DeliveryChargeCents)),
		Currency:          s.cfg.Currency,
		DroppedProductIDs: dropped,
	}
	for i, item := range kept {
		quote.Items = append(quote.Items, QuoteItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			Price:        s.formatter.Format(item.UnitPriceCents),
			LineTotal:    s.formatter.Format(lines[i].Total()),
			ProductImage: item.ProductImage,
		})
	}
	for _, group := range pricing.GroupByMerchant(lines) {
		ids := make([]uuid.UUID, 0, len(group.Indexes))
		for _, idx := range group.Indexes {
			ids = append(ids, kept[idx].ProductID)
		}
		quote.Merchants = append(quote.Merchants, MerchantQuote{
			MerchantID: group.MerchantID,
			ProductIDs: ids,
			Subtotal:   s.formatter.Format(group.SubtotalCents),
		})
	}
	return quote, nil
}
