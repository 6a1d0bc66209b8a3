package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/cartline-backend/api/responses"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

// RequireRole admits requests whose authenticated role is one of allowed.
func RequireRole(logg *logger.Logger, allowed ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.ActorRole(RoleFromContext(r.Context()))
			if !slices.Contains(allowed, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "this route is not available to your account"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
