package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shop-core/internal/domain"
	"shop-core/internal/middleware"
	"shop-core/internal/repository"
	"shop-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubOrderService struct {
	create func(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
	pay    func(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	cancel func(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	get    func(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	list   func(ctx context.Context, actor domain.Actor, page service.Page) ([]*domain.Order, int, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	return s.create(ctx, userID)
}

func (s *stubOrderService) PayOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	return s.pay(ctx, orderID, actor)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	return s.cancel(ctx, orderID, actor)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	return s.get(ctx, orderID, actor)
}

func (s *stubOrderService) ListOrders(ctx context.Context, actor domain.Actor, page service.Page) ([]*domain.Order, int, error) {
	return s.list(ctx, actor, page)
}

type stubCartService struct {
	get    func(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	add    func(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error)
	update func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.Cart, error)
	remove func(ctx context.Context, userID, itemID uuid.UUID) (*domain.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return s.get(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	return s.add(ctx, userID, productID, quantity)
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.Cart, error) {
	return s.update(ctx, userID, itemID, quantity)
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.Cart, error) {
	return s.remove(ctx, userID, itemID)
}

type stubProductService struct {
	create func(ctx context.Context, input service.ProductInput) (*domain.Product, error)
	update func(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error)
	delete func(ctx context.Context, id uuid.UUID) error
	get    func(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	list   func(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
}

func (s *stubProductService) CreateProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	return s.create(ctx, input)
}

func (s *stubProductService) UpdateProduct(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	return s.update(ctx, id, input)
}

func (s *stubProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, id)
}

func (s *stubProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.get(ctx, id)
}

func (s *stubProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.list(ctx, filter)
}

// fakeAuth stands in for AuthMiddleware. A nil actor leaves the request
// anonymous.
func fakeAuth(actor *domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor != nil {
				r = r.WithContext(middleware.WithActor(r.Context(), *actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serve(router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var response middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response.Error
}
