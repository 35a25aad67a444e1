package auth

import (
	"net/http"

	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/helpers"
)

// Middleware rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func Middleware(manager *JWTManager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := ExtractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				helpers.WriteError(w, apperrors.Wrap(apperrors.CodeUnauthenticated, "missing bearer token", nil))
				return
			}

			identity, err := manager.ParseAccessToken(raw)
			if err != nil {
				log.Debug("access token rejected", zap.Error(err))
				helpers.WriteError(w, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid access token", nil))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsAdmin() {
			helpers.WriteError(w, apperrors.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
