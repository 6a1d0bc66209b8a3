package enums

// PaymentStatus records how an order was paid. No gateway is involved, so
// checkout marks orders Paid on creation.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

func (p PaymentStatus) String() string {
	return string(p)
}
