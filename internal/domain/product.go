package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Column limits of the products table
const MaxProductNameLength = 100

// MaxPrice is the exclusive price ceiling of a NUMERIC(10, 2) column
var MaxPrice = decimal.New(1, 8)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// InStock reports whether at least one unit is available
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Validate checks the catalog invariants enforced on write
func (p *Product) Validate() error {
	switch {
	case p.Price.IsNegative(), p.Price.GreaterThanOrEqual(MaxPrice), p.Price.Exponent() < -2:
		return ErrInvalidProduct
	case p.Stock < 0, p.Name == "", utf8.RuneCountInString(p.Name) > MaxProductNameLength:
		return ErrInvalidProduct
	}
	return nil
}
