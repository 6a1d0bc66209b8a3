package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cartline-backend/api/middleware"
	"github.com/angelmondragon/cartline-backend/api/responses"
	"github.com/angelmondragon/cartline-backend/api/validators"
	cartsvc "github.com/angelmondragon/cartline-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

const (
	msgAdded     = "Item added to cart successfully."
	msgIncreased = "Item quantity increased successfully."
	msgReduced   = "Item quantity reduced successfully."
	msgRemoved   = "Item removed from cart successfully."
	msgCleared   = "Cart cleared successfully."
	msgFetched   = "Cart retrieved successfully."
)

// AddItem handles POST /cart/add.
func AddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		userID, ok := userFromRequest(w, r, logg)
		if !ok {
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Add(r.Context(), userID, parseProductID(payload.ProductID), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgAdded, view)
	}
}

// IncreaseItem handles POST /cart/item-increase.
func IncreaseItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return itemMutation(svc, logg, msgIncreased, func(s cartsvc.Service) mutationFunc { return s.Increase })
}

// DecreaseItem handles POST /cart/item-decrease.
func DecreaseItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return itemMutation(svc, logg, msgReduced, func(s cartsvc.Service) mutationFunc { return s.Decrease })
}

// RemoveItem handles DELETE /cart/removeitem.
func RemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return itemMutation(svc, logg, msgRemoved, func(s cartsvc.Service) mutationFunc { return s.Remove })
}

// ViewCart handles GET /cart/viewcart.
func ViewCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		userID, ok := userFromRequest(w, r, logg)
		if !ok {
			return
		}

		view, err := svc.View(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgFetched, view)
	}
}

// ClearCart handles DELETE /cart/clearcart.
func ClearCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		userID, ok := userFromRequest(w, r, logg)
		if !ok {
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgCleared, nil)
	}
}

type mutationFunc func(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.View, error)

func itemMutation(svc cartsvc.Service, logg *logger.Logger, message string, pick func(cartsvc.Service) mutationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		userID, ok := userFromRequest(w, r, logg)
		if !ok {
			return
		}

		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := pick(svc)(r.Context(), userID, parseProductID(payload.ProductID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, message, view)
	}
}

func serviceReady(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return false
	}
	return true
}

func userFromRequest(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.SubjectIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, false
	}
	return userID, true
}
