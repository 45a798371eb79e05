package transport

import (
	"net/http"

	"shop-core/internal/domain"
	"shop-core/internal/middleware"
	"shop-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddCartItemRequest is the payload for POST /api/cart/items
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// UpdateCartItemRequest is the payload for PATCH /api/cart/items/{id}
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// CartItemResponse is a cart line priced at the live catalog price
type CartItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

// CartResponse is the caller's cart with its running total
type CartResponse struct {
	ID         string             `json:"id"`
	Items      []CartItemResponse `json:"items"`
	TotalPrice string             `json:"total_price"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := CartItemResponse{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal().StringFixed(2),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.UnitPrice = item.Product.Price.StringFixed(2)
		}
		items = append(items, line)
	}

	return CartResponse{
		ID:         cart.ID.String(),
		Items:      items,
		TotalPrice: cart.Total().StringFixed(2),
	}
}

// CartHandler serves the authenticated caller's cart
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers the cart routes, all of which require a user
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{id}", h.UpdateItem)
		r.Delete("/items/{id}", h.RemoveItem)
	})
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	cart, err := h.cartService.GetCart(r.Context(), actor.UserID)
	h.respond(w, http.StatusOK, cart, err)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	cart, err := h.cartService.AddItem(r.Context(), actor.UserID, uuid.MustParse(req.ProductID), req.Quantity)
	h.respond(w, http.StatusCreated, cart, err)
}

// UpdateItem handles PATCH /api/cart/items/{id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	cart, err := h.cartService.UpdateItem(r.Context(), actor.UserID, itemID, req.Quantity)
	h.respond(w, http.StatusOK, cart, err)
}

// RemoveItem handles DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	cart, err := h.cartService.RemoveItem(r.Context(), actor.UserID, itemID)
	h.respond(w, http.StatusOK, cart, err)
}

func (h *CartHandler) respond(w http.ResponseWriter, status int, cart *domain.Cart, err error) {
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, status, newCartResponse(cart))
}
