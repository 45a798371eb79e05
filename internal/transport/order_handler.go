package transport

import (
	"context"
	"net/http"
	"time"

	"shop-core/internal/domain"
	"shop-core/internal/middleware"
	"shop-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemResponse is an order line at its captured price
type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

// OrderResponse is the public view of an order
type OrderResponse struct {
	OrderID    string              `json:"order_id"`
	UserID     string              `json:"user_id"`
	Status     domain.OrderStatus  `json:"status"`
	TotalPrice string              `json:"total_price"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Items      []OrderItemResponse `json:"items"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}

	return OrderResponse{
		OrderID:    order.ID.String(),
		UserID:     order.UserID.String(),
		Status:     order.Status,
		TotalPrice: order.TotalPrice.StringFixed(2),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
		Items:      items,
	}
}

// OrderRateLimits holds the throttles applied to individual order endpoints.
// A nil entry disables that throttle.
type OrderRateLimits struct {
	Create func(http.Handler) http.Handler
	Pay    func(http.Handler) http.Handler
}

// OrderHandler serves order commit and lifecycle endpoints
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers the order routes behind authentication
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler, limits OrderRateLimits) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.With(optional(limits.Create)...).Post("/", h.CreateOrder)
		r.With(optional(limits.Pay)...).Post("/{id}/pay", h.PayOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

// CreateOrder commits the caller's cart into a new order
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), actor.UserID)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newOrderResponse(order))
}

// PayOrder handles POST /api/orders/{id}/pay
func (h *OrderHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.PayOrder)
}

// CancelOrder handles POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.CancelOrder)
}

type transitionFunc func(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := fn(r.Context(), orderID, actor)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newOrderResponse(order))
}

// GetOrder handles GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID, actor)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newOrderResponse(order))
}

// ListOrders handles GET /api/orders. Administrators see every order.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	page := pageFromQuery(r)
	orders, total, err := h.orderService.ListOrders(r.Context(), actor, page)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	results := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		results = append(results, newOrderResponse(order))
	}

	middleware.RespondWithJSON(w, http.StatusOK, newPageResponse(results, total, page))
}
