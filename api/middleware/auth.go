package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cartline-backend/api/responses"
	pkgAuth "github.com/angelmondragon/cartline-backend/pkg/auth"
	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

// Auth validates the bearer token and seeds the request context with the
// subject id and role. A misconfigured verifier fails every request closed.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verifierErr := pkgAuth.NewVerifier(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifierErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "auth not configured"))
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if pkgAuth.IsExpired(err) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			subject := claims.UserID.String()
			ctx := WithRole(WithUserID(r.Context(), subject), string(claims.Role))
			if logg != nil {
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if claims.Role == enums.ActorRoleMerchant {
					ctx = logg.WithMerchantID(ctx, subject)
				} else {
					ctx = logg.WithUserID(ctx, subject)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credentials of an "Authorization: Bearer" header.
// Other schemes are rejected.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
