package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE products SET stock = stock - 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	domainErr := errors.New("cart is empty")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		return domainErr
	})

	assert.ErrorIs(t, err, domainErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_DoesNotRetryPermanentErrors(t *testing.T) {
	db, mock := newMockDB(t)
	opts := DefaultTxOptions()
	opts.MaxRetries = 3
	opts.BaseBackoff = time.Millisecond

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := WithTransaction(context.Background(), db, opts, func(tx *sql.Tx) error {
		calls++
		return errors.New("insufficient stock")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RetriesSerializationFailures(t *testing.T) {
	db, mock := newMockDB(t)
	opts := DefaultTxOptions()
	opts.MaxRetries = 2
	opts.BaseBackoff = time.Millisecond

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := WithTransaction(context.Background(), db, opts, func(tx *sql.Tx) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: CodeSerializationFailure}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		t.Fatal("body must not run without a transaction")
		return nil
	})

	assert.ErrorContains(t, err, "begin transaction")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"serialization", &pgconn.PgError{Code: CodeSerializationFailure}, ErrorClassSerialization},
		{"deadlock", &pgconn.PgError{Code: CodeDeadlockDetected}, ErrorClassDeadlock},
		{"lock not available", &pgconn.PgError{Code: CodeLockNotAvailable}, ErrorClassTransient},
		{"check violation", &pgconn.PgError{Code: CodeCheckViolation}, ErrorClassPermanent},
		{"wrapped deadlock", errors.Join(errors.New("update stock"), &pgconn.PgError{Code: CodeDeadlockDetected}), ErrorClassDeadlock},
		{"plain", errors.New("boom"), ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "users_username_key"}

	assert.True(t, IsUniqueViolation(err, "users_username_key"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "carts_user_id_key"))
	assert.False(t, IsUniqueViolation(errors.New("duplicate"), ""))
}
