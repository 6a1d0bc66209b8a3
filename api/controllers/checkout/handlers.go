package checkout

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cartline-backend/api/middleware"
	"github.com/angelmondragon/cartline-backend/api/responses"
	"github.com/angelmondragon/cartline-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/cartline-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

const (
	msgCheckout = "Checkout initiated"
	msgPlaced   = "Order placed successfully."
)

const maxFieldLen = 255

// placeOrderRequest is the body of POST /place-order.
type placeOrderRequest struct {
	CustomerFirstName   string `json:"customerFirstName" validate:"required,max=255"`
	CustomerLastName    string `json:"customerLastName" validate:"required,max=255"`
	CustomerAddress     string `json:"customerAddress" validate:"required,max=255"`
	CustomerPhoneNumber string `json:"customerPhoneNumber" validate:"required,max=32"`
	City                string `json:"city" validate:"required,max=255"`
	Country             string `json:"country" validate:"omitempty,max=255"`
}

func (p placeOrderRequest) customer() checkoutsvc.CustomerDetails {
	return checkoutsvc.CustomerDetails{
		FirstName:   validators.SanitizeString(p.CustomerFirstName, maxFieldLen),
		LastName:    validators.SanitizeString(p.CustomerLastName, maxFieldLen),
		Address:     validators.SanitizeString(p.CustomerAddress, maxFieldLen),
		PhoneNumber: validators.SanitizeString(p.CustomerPhoneNumber, maxFieldLen),
		City:        validators.SanitizeString(p.City, maxFieldLen),
		Country:     validators.SanitizeString(p.Country, maxFieldLen),
	}
}

// Preview handles GET /checkout.
func Preview(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := middleware.SubjectIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		quote, err := svc.Preview(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgCheckout, quote)
	}
}

// PlaceOrder handles POST /place-order. A replayed Idempotency-Key returns
// the original order with 200 instead of 201.
func PlaceOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := middleware.SubjectIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := middleware.IdempotencyKeyFromContext(r.Context())
		if key == "" {
			key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		}

		result, err := svc.Confirm(r.Context(), checkoutsvc.ConfirmInput{
			UserID:         userID,
			Customer:       payload.customer(),
			IdempotencyKey: key,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessMessage(w, status, msgPlaced, result)
	}
}
