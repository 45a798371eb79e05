package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"shop-core/internal/database"

	"github.com/google/uuid"
)

// DBTX is implemented by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repositories bundles the repositories bound to one connection or transaction
type Repositories struct {
	Products ProductRepository
	Carts    CartRepository
	Orders   OrderRepository
}

// NewRepositories binds every repository to db
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Products: NewProductRepository(db),
		Carts:    NewCartRepository(db),
		Orders:   NewOrderRepository(db),
	}
}

// UnitOfWork runs fn with repositories bound to a single transaction. Returning
// an error from fn rolls back every write made through repos.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

type sqlUnitOfWork struct {
	db   database.TxBeginner
	opts database.TxOptions
}

// NewUnitOfWork creates a UnitOfWork backed by database transactions
func NewUnitOfWork(db database.TxBeginner, opts database.TxOptions) UnitOfWork {
	return &sqlUnitOfWork{db: db, opts: opts}
}

func (u *sqlUnitOfWork) Do(ctx context.Context, fn func(repos Repositories) error) error {
	return database.WithTransaction(ctx, u.db, u.opts, func(tx *sql.Tx) error {
		return fn(NewRepositories(tx))
	})
}

// inClause returns "$n, $n+1, ..." placeholders for ids starting at position
// start, along with the ids as query arguments.
func inClause(ids []uuid.UUID, start int) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
