package cart

import (
	"github.com/google/uuid"
)

// addItemRequest is the body of POST /cart/add. Quantity is checked by the
// cart service so the error carries its message.
type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

// itemRequest identifies one cart line.
type itemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
}

func parseProductID(raw string) uuid.UUID {
	// validated by the uuid tag
	id, _ := uuid.Parse(raw)
	return id
}
