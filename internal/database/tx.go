package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// TxOptions controls isolation and how often a transaction that hit a
// serialization failure or deadlock is re-run. Domain errors returned by the
// transaction body are never retried.
type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	BaseBackoff    time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		BaseBackoff:    50 * time.Millisecond,
	}
}

// TxBeginner is satisfied by *sql.DB
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTransaction runs fn inside a transaction. The transaction is rolled back
// on every exit path unless fn returns nil and the commit succeeds.
func WithTransaction(ctx context.Context, db TxBeginner, opts TxOptions, fn func(*sql.Tx) error) error {
	if opts.MaxRetries <= 0 {
		return runOnce(ctx, db, opts, fn)
	}

	base := opts.BaseBackoff
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(opts.MaxRetries), retry.WithJitterPercent(25, retry.NewExponential(base)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := runOnce(ctx, db, opts, fn)
		if err != nil && IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func runOnce(ctx context.Context, db TxBeginner, opts TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	return nil
}
