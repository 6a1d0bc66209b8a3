// Package pricing holds the pure arithmetic shared by the cart, checkout and
// order ledger. Amounts are int64 minor currency units.
package pricing

import "github.com/google/uuid"

// Line is the priced view of a cart or order line.
type Line struct {
	ProductID      uuid.UUID
	MerchantID     uuid.UUID
	Quantity       int
	UnitPriceCents int64
}

// Total returns quantity * unit price for the line.
func (l Line) Total() int64 {
	return LineTotal(l.Quantity, l.UnitPriceCents)
}

// LineTotal returns quantity * unitPrice.
func LineTotal(quantity int, unitPriceCents int64) int64 {
	return int64(quantity) * unitPriceCents
}

// CartTotal sums every line total.
func CartTotal(lines []Line) int64 {
	var total int64
	for _, line := range lines {
		total += line.Total()
	}
	return total
}

// MerchantGroup is the slice of lines owned by one merchant. Indexes point
// back into the input slice so callers can recover their own line type.
type MerchantGroup struct {
	MerchantID    uuid.UUID
	Indexes       []int
	SubtotalCents int64
}

// GroupByMerchant partitions lines by merchant, keeping groups in the order
// each merchant first appears.
func GroupByMerchant(lines []Line) []MerchantGroup {
	groups := make([]MerchantGroup, 0)
	position := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		idx, ok := position[line.MerchantID]
		if !ok {
			idx = len(groups)
			position[line.MerchantID] = idx
			groups = append(groups, MerchantGroup{MerchantID: line.MerchantID})
		}
		groups[idx].Indexes = append(groups[idx].Indexes, i)
		groups[idx].SubtotalCents += line.Total()
	}
	return groups
}

// OrderTotal adds the delivery charge to the product total.
func OrderTotal(productTotalCents, deliveryChargeCents int64) int64 {
	return productTotalCents + deliveryChargeCents
}
