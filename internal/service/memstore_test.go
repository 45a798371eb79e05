package service

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shop-core/internal/domain"
	"shop-core/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory UnitOfWork. Transactions are fully serialized and
// a failed callback restores the state captured when it began.
type memStore struct {
	mu sync.Mutex

	products  map[uuid.UUID]domain.Product
	carts     map[uuid.UUID]domain.Cart // keyed by user id
	cartItems map[uuid.UUID]domain.CartItem
	orders    map[uuid.UUID]*domain.Order

	// clearErr fails ClearItems to exercise rollback after partial writes
	clearErr  error
	lockCalls [][]uuid.UUID
	// cartLocks records every user whose cart row was locked
	cartLocks []uuid.UUID
	// staleLines, when set, is what ListItems returns: a read of the cart
	// taken before a concurrent commit emptied it
	staleLines []*domain.CartItem
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[uuid.UUID]domain.Product),
		carts:     make(map[uuid.UUID]domain.Cart),
		cartItems: make(map[uuid.UUID]domain.CartItem),
		orders:    make(map[uuid.UUID]*domain.Order),
	}
}

type memSnapshot struct {
	products  map[uuid.UUID]domain.Product
	carts     map[uuid.UUID]domain.Cart
	cartItems map[uuid.UUID]domain.CartItem
	orders    map[uuid.UUID]*domain.Order
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products:  make(map[uuid.UUID]domain.Product, len(s.products)),
		carts:     make(map[uuid.UUID]domain.Cart, len(s.carts)),
		cartItems: make(map[uuid.UUID]domain.CartItem, len(s.cartItems)),
		orders:    make(map[uuid.UUID]*domain.Order, len(s.orders)),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.carts {
		snap.carts[k] = v
	}
	for k, v := range s.cartItems {
		snap.cartItems[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = cloneOrder(v)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
}

func (s *memStore) Do(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(repository.Repositories{
		Products: &memProducts{s},
		Carts:    &memCarts{s},
		Orders:   &memOrders{s},
	})
}

// Test helpers. They take the store lock themselves and must not be called
// from inside Do.

func (s *memStore) addProduct(name, price string, stock int) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p := domain.Product{ID: uuid.New(), Name: name, Price: mustDecimal(price), Stock: stock, CreatedAt: now, UpdatedAt: now}
	s.products[p.ID] = p
	return p
}

func (s *memStore) putInCart(userID, productID uuid.UUID, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		cart = domain.Cart{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
		s.carts[userID] = cart
	}
	s.cartItems[uuid.New()] = domain.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
}

func (s *memStore) stockOf(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) cartSize(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		return 0
	}
	n := 0
	for _, item := range s.cartItems {
		if item.CartID == cart.ID {
			n++
		}
	}
	return n
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) setPrice(id uuid.UUID, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = mustDecimal(price)
	s.products[id] = p
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = make([]*domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		it := *item
		c.Items[i] = &it
	}
	return &c
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

type memProducts struct{ s *memStore }

func (r *memProducts) Create(ctx context.Context, product *domain.Product) error {
	r.s.products[product.ID] = *product
	return nil
}

func (r *memProducts) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := r.s.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	r.s.products[product.ID] = *product
	return nil
}

func (r *memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	for _, order := range r.s.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	delete(r.s.products, id)
	for itemID, item := range r.s.cartItems {
		if item.ProductID == id {
			delete(r.s.cartItems, itemID)
		}
	}
	return nil
}

func (r *memProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProducts) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	var matched []*domain.Product
	for _, p := range r.s.products {
		p := p
		if filter.Name != "" && p.Name != filter.Name {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		matched = append(matched, &p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memProducts) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	r.s.lockCalls = append(r.s.lockCalls, append([]uuid.UUID(nil), ids...))
	out := []*domain.Product{}
	for _, id := range repository.SortedUniqueIDs(ids) {
		if p, ok := r.s.products[id]; ok {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memProducts) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	p, ok := r.s.products[id]
	if !ok || p.Stock+delta < 0 {
		return repository.ErrStockUnavailable
	}
	p.Stock += delta
	r.s.products[id] = p
	return nil
}

type memCarts struct{ s *memStore }

func (r *memCarts) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, ok := r.s.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return &cart, nil
}

func (r *memCarts) LockByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	r.s.cartLocks = append(r.s.cartLocks, userID)
	return r.FindByUserID(ctx, userID)
}

func (r *memCarts) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if _, ok := r.s.carts[userID]; !ok {
		r.s.carts[userID] = domain.Cart{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
	}
	return r.FindByUserID(ctx, userID)
}

func (r *memCarts) withProduct(id uuid.UUID, item domain.CartItem) *domain.CartItem {
	item.ID = id
	if p, ok := r.s.products[item.ProductID]; ok {
		item.Product = &p
	}
	return &item
}

func (r *memCarts) ListItems(ctx context.Context, cartID uuid.UUID) ([]*domain.CartItem, error) {
	if r.s.staleLines != nil {
		return r.s.staleLines, nil
	}
	items := []*domain.CartItem{}
	for id, item := range r.s.cartItems {
		if item.CartID == cartID {
			items = append(items, r.withProduct(id, item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return lessID(items[i].ProductID, items[j].ProductID) })
	return items, nil
}

func (r *memCarts) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	item, ok := r.s.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return nil, domain.ErrCartItemNotFound
	}
	return r.withProduct(itemID, item), nil
}

func (r *memCarts) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	for id, item := range r.s.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			return r.withProduct(id, item), nil
		}
	}
	return nil, domain.ErrCartItemNotFound
}

func (r *memCarts) SaveItem(ctx context.Context, item *domain.CartItem) error {
	if item.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	for id, existing := range r.s.cartItems {
		if existing.CartID == item.CartID && existing.ProductID == item.ProductID {
			item.ID = id
		}
	}
	stored := *item
	stored.Product = nil
	r.s.cartItems[item.ID] = stored
	return nil
}

func (r *memCarts) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	item, ok := r.s.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return domain.ErrCartItemNotFound
	}
	delete(r.s.cartItems, itemID)
	return nil
}

func (r *memCarts) ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	if r.s.clearErr != nil {
		return 0, r.s.clearErr
	}
	var removed int64
	for id, item := range r.s.cartItems {
		if item.CartID == cartID {
			delete(r.s.cartItems, id)
			removed++
		}
	}
	return removed, nil
}

type memOrders struct{ s *memStore }

func (r *memOrders) Create(ctx context.Context, order *domain.Order) error {
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memOrders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *memOrders) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	order, ok := r.s.orders[id]
	if !ok || order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *memOrders) LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, updatedAt time.Time) error {
	order, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = updatedAt
	return nil
}

func (r *memOrders) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	var matched []*domain.Order
	for _, order := range r.s.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return lessID(matched[j].ID, matched[i].ID)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
