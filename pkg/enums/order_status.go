package enums

// OrderStatus tracks fulfilment of a placed order. Checkout always creates
// orders as Processing; later states belong to fulfilment tooling.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

func (o OrderStatus) String() string {
	return string(o)
}

