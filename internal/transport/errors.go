package transport

import (
	"errors"
	"net/http"

	"shop-core/internal/domain"
	"shop-core/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondWithDomainError maps domain errors onto HTTP statuses. Anything not
// recognised is logged and reported as a generic internal error.
func respondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		stockErr      *domain.InsufficientStockError
		transitionErr *domain.InvalidTransitionError
		exceededErr   *domain.StockExceededError
	)

	switch {
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "not enough stock to place this order", map[string]interface{}{
			"kind":      "insufficient_stock",
			"shortages": stockErr.Lines,
		})
	case errors.As(err, &transitionErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, transitionErr.Error(), map[string]interface{}{
			"kind":             "invalid_transition",
			"current_status":   transitionErr.From,
			"requested_status": transitionErr.To,
		})
	case errors.As(err, &exceededErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, exceededErr.Error(), map[string]interface{}{
			"kind":      "stock_exceeded",
			"available": exceededErr.Available,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		respondWithKind(w, http.StatusBadRequest, err, "empty_cart")
	case errors.Is(err, domain.ErrCartNotFound):
		respondWithKind(w, http.StatusBadRequest, err, "cart_not_found")
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondWithKind(w, http.StatusBadRequest, err, "invalid_quantity")
	case errors.Is(err, domain.ErrInvalidProduct):
		respondWithKind(w, http.StatusBadRequest, err, "invalid_product")
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProductInUse):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("Request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondWithKind(w http.ResponseWriter, status int, err error, kind string) {
	middleware.RespondWithErrorDetails(w, status, err.Error(), map[string]interface{}{"kind": kind})
}

// decodeRequest decodes and validates a JSON body, writing the error response
// itself when it returns false
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requireActor returns the authenticated caller or writes a 401
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		logger.Error("Actor not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return actor, ok
}

// uuidParam parses a UUID path parameter. Malformed ids cannot name any
// resource and are reported as not found.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "resource not found")
		return uuid.Nil, false
	}
	return id, true
}
