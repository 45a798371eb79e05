package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shop-core/internal/domain"

	"github.com/google/uuid"
)

// CartRepository defines data access for carts and their lines
type CartRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// LockByUserID is FindByUserID with the cart row held FOR UPDATE until the
	// transaction ends. Every writer of a cart's lines takes it first, so a
	// commit and an edit of the same cart never interleave.
	LockByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]*domain.CartItem, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error)
	SaveItem(ctx context.Context, item *domain.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error)
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

const cartSelect = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`

// FindByUserID retrieves the cart owned by a user
func (r *cartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return r.scanCart(r.db.QueryRowContext(ctx, cartSelect, userID))
}

func (r *cartRepository) LockByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return r.scanCart(r.db.QueryRowContext(ctx, cartSelect+` FOR UPDATE`, userID))
}

func (r *cartRepository) scanCart(row *sql.Row) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := row.Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrCartNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}
	return cart, nil
}

// GetOrCreate returns the user's cart, creating it on first use. Concurrent
// first calls converge on the same row through the unique user_id constraint.
func (r *cartRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `
		INSERT INTO carts (id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, uuid.New(), userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return r.FindByUserID(ctx, userID)
}

const cartItemSelect = `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
`

// ListItems returns every line of a cart resolved to its product, ordered by
// product id
func (r *cartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]*domain.CartItem, error) {
	query := cartItemSelect + `
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// FindItem retrieves a line scoped to the given cart
func (r *cartRepository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	query := cartItemSelect + `
		WHERE ci.cart_id = $1 AND ci.id = $2
	`

	return r.findOne(ctx, query, cartID, itemID)
}

// FindItemByProduct retrieves the line holding productID, if any
func (r *cartRepository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	query := cartItemSelect + `
		WHERE ci.cart_id = $1 AND ci.product_id = $2
	`

	return r.findOne(ctx, query, cartID, productID)
}

func (r *cartRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domain.CartItem, error) {
	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	return item, nil
}

// SaveItem inserts a line or overwrites the quantity of the existing line for
// the same product
func (r *cartRepository) SaveItem(ctx context.Context, item *domain.CartItem) error {
	if item.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query, item.ID, item.CartID, item.ProductID, item.Quantity).Scan(&item.ID); err != nil {
		return fmt.Errorf("failed to save cart item: %w", err)
	}

	return nil
}

// DeleteItem removes one line from a cart
func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return expectOneRow(result, domain.ErrCartItemNotFound)
}

// ClearItems deletes every line of a cart and reports how many were removed
func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}

func scanCartItem(row rowScanner) (*domain.CartItem, error) {
	item := &domain.CartItem{Product: &domain.Product{}}
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.Product.ID,
		&item.Product.Name,
		&item.Product.Description,
		&item.Product.Price,
		&item.Product.Stock,
		&item.Product.CreatedAt,
		&item.Product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
