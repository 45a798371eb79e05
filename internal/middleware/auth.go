package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"shop-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	actorKey     contextKey = "actor"
	actorSinkKey contextKey = "actor_sink"
)

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller as a domain.Actor in the request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			tokenString, ok := bearerToken(header)
			if !ok {
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			actor, err := parseActor(tokenString, jwtSecret)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				RespondWithError(w, http.StatusUnauthorized, "token expired")
				return
			case err != nil:
				logger.Debug("Token rejected", zap.Error(err), zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, attachActor(r, actor))
		})
	}
}

// OptionalAuthMiddleware attaches the caller when the request carries a valid
// bearer token and otherwise lets it through anonymously. It lets throttling
// tell users from anonymous clients ahead of the per-route AuthMiddleware.
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := parseActor(tokenString, jwtSecret)
			if err != nil {
				logger.Debug("Ignoring invalid token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, attachActor(r, actor))
		})
	}
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	return token, ok && token != "" && !strings.Contains(token, " ")
}

func attachActor(r *http.Request, actor domain.Actor) *http.Request {
	if sink, ok := r.Context().Value(actorSinkKey).(*string); ok {
		*sink = actor.UserID.String()
	}
	return r.WithContext(WithActor(r.Context(), actor))
}

var errInvalidClaims = errors.New("invalid token claims")

func parseActor(tokenString, jwtSecret string) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return domain.Actor{}, err
	}
	if !token.Valid {
		return domain.Actor{}, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, errInvalidClaims
	}

	rawID, ok := claims["user_id"].(string)
	if !ok {
		return domain.Actor{}, errInvalidClaims
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Actor{}, errInvalidClaims
	}

	// Tokens without the flag belong to regular users
	isAdmin, _ := claims["is_admin"].(bool)

	return domain.Actor{UserID: userID, IsAdmin: isAdmin}, nil
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated caller from the request context
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// withActorSink lets an outer middleware learn which user a request was
// authenticated as
func withActorSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, actorSinkKey, sink)
}
