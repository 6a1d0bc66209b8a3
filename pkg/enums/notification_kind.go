package enums

// NotificationKind names the message published for an order event.
type NotificationKind string

const (
	NotificationKindOrderConfirmation NotificationKind = "order_confirmation"
	NotificationKindMerchantNewOrder  NotificationKind = "merchant_new_order"
)

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}
