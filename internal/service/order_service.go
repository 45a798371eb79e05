package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-core/internal/domain"
	"shop-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize matches the catalog and order listing page size
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a limit/offset window over a listing
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// OrderService turns carts into orders and drives the order state machine
type OrderService interface {
	// CreateOrder atomically converts the user's cart into a PENDING order,
	// reserving stock and emptying the cart.
	CreateOrder(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
	PayOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	// CancelOrder moves a PENDING order to CANCELED and returns its quantities
	// to stock.
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor, page Page) ([]*domain.Order, int, error)
}

// OrderServiceOption customizes an OrderService
type OrderServiceOption func(*orderService)

// WithClock overrides the time source used for order timestamps
func WithClock(now func() time.Time) OrderServiceOption {
	return func(s *orderService) {
		s.now = now
	}
}

type orderService struct {
	uow    repository.UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(uow repository.UnitOfWork, logger *zap.Logger, opts ...OrderServiceOption) OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &orderService{
		uow:    uow,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder runs the whole commit in one transaction. The cart row is locked
// first, then every product in it in ascending id order, so neither the lines
// nor the stock read here can change before the decrement below. Locks are
// always taken cart before products.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		cart, err := repos.Carts.LockByUserID(ctx, userID)
		if err != nil {
			return err
		}

		items, err := repos.Carts.ListItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrEmptyCart
		}

		requested := make(map[uuid.UUID]int, len(items))
		names := make(map[uuid.UUID]string, len(items))
		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			requested[item.ProductID] += item.Quantity
			if item.Product != nil {
				names[item.ProductID] = item.Product.Name
			}
			ids = append(ids, item.ProductID)
		}
		ids = repository.SortedUniqueIDs(ids)

		locked, err := repos.Products.LockForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		products := make(map[uuid.UUID]*domain.Product, len(locked))
		for _, product := range locked {
			products[product.ID] = product
		}

		if shortages := checkStock(ids, requested, names, products); len(shortages) > 0 {
			return &domain.InsufficientStockError{Lines: shortages}
		}

		now := s.now()
		order = &domain.Order{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    domain.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
			Items:     make([]*domain.OrderItem, 0, len(ids)),
		}

		total := decimal.Zero
		for _, id := range ids {
			item := &domain.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: id,
				Quantity:  requested[id],
				Price:     products[id].Price,
			}
			total = total.Add(item.Subtotal())
			order.Items = append(order.Items, item)
		}
		order.TotalPrice = total

		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}

		for _, id := range ids {
			if err := repos.Products.AdjustStock(ctx, id, -requested[id]); err != nil {
				if errors.Is(err, repository.ErrStockUnavailable) {
					return &domain.InsufficientStockError{Lines: []domain.StockShortage{{
						ProductID:   id,
						ProductName: products[id].Name,
						Available:   products[id].Stock,
						Requested:   requested[id],
					}}}
				}
				return err
			}
		}

		// Lines consumed by another commit must not be ordered twice
		removed, err := repos.Carts.ClearItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if removed != int64(len(items)) {
			return domain.ErrEmptyCart
		}

		return nil
	})
	if err != nil {
		if domain.IsInsufficientStock(err) {
			s.logger.Info("order rejected",
				zap.String("user_id", userID.String()),
				zap.String("reason", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	return order, nil
}

// checkStock returns one shortage per product whose locked stock cannot cover
// the requested quantity. A product that vanished counts as zero available.
func checkStock(ids []uuid.UUID, requested map[uuid.UUID]int, names map[uuid.UUID]string, products map[uuid.UUID]*domain.Product) []domain.StockShortage {
	var shortages []domain.StockShortage
	for _, id := range ids {
		available, name := 0, names[id]
		if product, ok := products[id]; ok {
			available, name = product.Stock, product.Name
		}
		if requested[id] > available {
			shortages = append(shortages, domain.StockShortage{
				ProductID:   id,
				ProductName: name,
				Available:   available,
				Requested:   requested[id],
			})
		}
	}
	return shortages
}

// PayOrder marks a PENDING order as COMPLETED
func (s *orderService) PayOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	return s.transition(ctx, orderID, actor, domain.OrderStatusCompleted)
}

// CancelOrder marks a PENDING order as CANCELED and restocks its items
func (s *orderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	return s.transition(ctx, orderID, actor, domain.OrderStatusCanceled)
}

func (s *orderService) transition(ctx context.Context, orderID uuid.UUID, actor domain.Actor, to domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		current, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanMutate(actor, current) {
			return domain.ErrForbidden
		}

		// Status must be re-read under the row lock; two concurrent cancels
		// would otherwise both restock.
		locked, err := repos.Orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := locked.Transition(to, s.now()); err != nil {
			return err
		}

		if to == domain.OrderStatusCanceled {
			if err := restock(ctx, repos.Products, locked); err != nil {
				return err
			}
		}

		if err := repos.Orders.UpdateStatus(ctx, locked.ID, locked.Status, locked.UpdatedAt); err != nil {
			return err
		}

		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.String("status", string(order.Status)),
	)

	return order, nil
}

// restock returns every item quantity to stock using the same ascending lock
// order as CreateOrder
func restock(ctx context.Context, products repository.ProductRepository, order *domain.Order) error {
	quantities := order.QuantitiesByProduct()
	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	ids = repository.SortedUniqueIDs(ids)

	if _, err := products.LockForUpdate(ctx, ids); err != nil {
		return err
	}

	for _, id := range ids {
		if err := products.AdjustStock(ctx, id, quantities[id]); err != nil {
			return fmt.Errorf("failed to restock product %s: %w", id, err)
		}
	}

	return nil
}

// GetOrder returns an order visible to actor. Orders owned by someone else
// are reported as not found.
func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	var order *domain.Order

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		if actor.IsAdmin {
			order, err = repos.Orders.FindByID(ctx, orderID)
		} else {
			order, err = repos.Orders.FindByIDForUser(ctx, orderID, actor.UserID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders returns the actor's orders newest first, or every order for
// administrators
func (s *orderService) ListOrders(ctx context.Context, actor domain.Actor, page Page) ([]*domain.Order, int, error) {
	page = page.Normalize()
	filter := repository.OrderFilter{Limit: page.Limit, Offset: page.Offset}
	if !actor.IsAdmin {
		userID := actor.UserID
		filter.UserID = &userID
	}

	var (
		orders []*domain.Order
		total  int
	)
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		orders, total, err = repos.Orders.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}
