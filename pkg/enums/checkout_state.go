package enums

// CheckoutState is a step of the order confirmation workflow.
type CheckoutState string

const (
	CheckoutStateValidating CheckoutState = "validating"
	CheckoutStateEnriching  CheckoutState = "enriching"
	CheckoutStatePersisting CheckoutState = "persisting"
	CheckoutStateNotifying  CheckoutState = "notifying"
	CheckoutStateFinalizing CheckoutState = "finalizing"
	CheckoutStateComplete   CheckoutState = "complete"
	CheckoutStateFailed     CheckoutState = "failed"
)

// String implements fmt.Stringer.
func (c CheckoutState) String() string {
	return string(c)
}
