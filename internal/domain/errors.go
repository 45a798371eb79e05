package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = errors.New("cart does not exist")
	ErrEmptyCart        = errors.New("cart is empty, cannot create order")
	ErrForbidden        = errors.New("you do not have permission to perform this action")
	ErrNotFound         = errors.New("resource not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidProduct   = errors.New("price and stock must not be negative")
	ErrProductInUse     = errors.New("product is referenced by existing orders")
)

// StockShortage describes a single cart line that cannot be satisfied
type StockShortage struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Available   int       `json:"available"`
	Requested   int       `json:"requested"`
}

// InsufficientStockError carries every line of a commit that exceeded stock.
type InsufficientStockError struct {
	Lines []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, line := range e.Lines {
		parts = append(parts, fmt.Sprintf("not enough stock for %s: available %d, requested %d",
			line.ProductName, line.Available, line.Requested))
	}
	return strings.Join(parts, "; ")
}

// InvalidTransitionError is returned when the order state machine rejects a move
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// StockExceededError is returned by cart operations that request more than is on hand
type StockExceededError struct {
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("only %d items available in stock", e.Available)
}

// IsInsufficientStock reports whether err is or wraps an *InsufficientStockError
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsInvalidTransition reports whether err is or wraps an *InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}
