package orders

import (
	"net/http"

	"github.com/angelmondragon/cartline-backend/api/middleware"
	"github.com/angelmondragon/cartline-backend/api/responses"
	internalorders "github.com/angelmondragon/cartline-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

const msgOrdersRetrieved = "Orders retrieved successfully."

// ListForUser handles GET /getorders, newest first.
func ListForUser(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, ok := middleware.SubjectIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		rows, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgOrdersRetrieved, rows)
	}
}

// ListForMerchant handles GET /orders-received. Each order only carries the
// calling merchant's lines.
func ListForMerchant(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		merchantID, ok := middleware.SubjectIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant context missing"))
			return
		}

		rows, err := svc.ListForMerchant(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msgOrdersRetrieved, rows)
	}
}
