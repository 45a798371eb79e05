package middleware

import (
	"net/http"

	"shop-core/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin restricts a route to administrators. Mount it behind
// AuthMiddleware or OptionalAuthMiddleware.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return requireActor(logger, func(a domain.Actor) bool { return a.IsAdmin })
}

func requireActor(logger *zap.Logger, allowed func(domain.Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !allowed(actor) {
				logger.Warn("Actor denied",
					zap.String("user_id", actor.UserID.String()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
