package service

import (
	"context"
	"errors"

	"shop-core/internal/domain"
	"shop-core/internal/repository"

	"github.com/google/uuid"
)

// CartService manages the caller's own cart. Every operation returns the cart
// as it stands afterwards.
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.Cart, error)
}

type cartService struct {
	uow repository.UnitOfWork
}

// NewCartService creates a new instance of CartService
func NewCartService(uow repository.UnitOfWork) CartService {
	return &cartService{uow: uow}
}

// GetCart returns the user's cart, creating an empty one on first access
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		cart, err = loadCart(ctx, repos.Carts, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem puts quantity units of a product into the cart. Adding a product
// already in the cart increases that line; the cart lock keeps concurrent adds
// from losing an increment.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	var cart *domain.Cart
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Carts.GetOrCreate(ctx, userID); err != nil {
			return err
		}
		c, err := repos.Carts.LockByUserID(ctx, userID)
		if err != nil {
			return err
		}

		product, err := repos.Products.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		item, err := repos.Carts.FindItemByProduct(ctx, c.ID, productID)
		switch {
		case errors.Is(err, domain.ErrCartItemNotFound):
			item = &domain.CartItem{ID: uuid.New(), CartID: c.ID, ProductID: productID}
		case err != nil:
			return err
		}

		item.Quantity += quantity
		if item.Quantity > product.Stock {
			return &domain.StockExceededError{Available: product.Stock}
		}

		if err := repos.Carts.SaveItem(ctx, item); err != nil {
			return err
		}

		cart, err = loadCart(ctx, repos.Carts, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem sets the quantity of a line in the caller's cart
func (s *cartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	var cart *domain.Cart
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		c, err := ownCart(ctx, repos.Carts, userID)
		if err != nil {
			return err
		}

		item, err := repos.Carts.FindItem(ctx, c.ID, itemID)
		if err != nil {
			return err
		}
		if quantity > item.Product.Stock {
			return &domain.StockExceededError{Available: item.Product.Stock}
		}

		item.Quantity = quantity
		if err := repos.Carts.SaveItem(ctx, item); err != nil {
			return err
		}

		cart, err = loadCart(ctx, repos.Carts, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem deletes a line from the caller's cart
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		c, err := ownCart(ctx, repos.Carts, userID)
		if err != nil {
			return err
		}

		if err := repos.Carts.DeleteItem(ctx, c.ID, itemID); err != nil {
			return err
		}

		cart, err = loadCart(ctx, repos.Carts, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// ownCart locks the caller's cart for item operations. Without a cart no
// item can belong to the caller.
func ownCart(ctx context.Context, carts repository.CartRepository, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := carts.LockByUserID(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrCartItemNotFound
	}
	return cart, err
}

func loadCart(ctx context.Context, carts repository.CartRepository, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items, err = carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	return cart, nil
}
