package middleware

import (
	"net/http"
	"strings"

	"github.com/theluxmining/commerce-backend/api/responses"
	pkgauth "github.com/theluxmining/commerce-backend/pkg/auth"
	"github.com/theluxmining/commerce-backend/pkg/config"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

const sessionKeyHeader = "X-Session-Key"

// Identity resolves the shopper making the request. A valid bearer
// token wins; otherwise the anonymous session key header is used. A
// request carrying neither is rejected so every cart has an owner.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))

			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgauth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				userID := claims.UserID
				identity := types.Identity{UserID: &userID}
				ctx := WithIdentity(r.Context(), identity)
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sessionKey := strings.TrimSpace(r.Header.Get(sessionKeyHeader))
			if sessionKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			identity := types.Identity{SessionKey: &sessionKey}
			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithSessionKey(ctx, sessionKey)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous shoppers; used for the address book
// and the cart migration endpoint.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if !identity.IsAuthenticated() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
