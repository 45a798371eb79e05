//go:build integration

// Package dbtest starts a throwaway PostgreSQL with the schema migrated, for
// integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"shop-core/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Start runs a postgres:15 container and returns a migrated pool together
// with a teardown that closes the pool and removes the container.
func Start(ctx context.Context, maxConns int) (*sql.DB, func() error, error) {
	container, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("shop_test"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres: %w", err)
	}
	terminate := func() error { return container.Terminate(context.Background()) }

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, errors.Join(err, terminate())
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, errors.Join(err, terminate())
	}
	db.SetMaxOpenConns(maxConns)

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		db.Close()
		return nil, nil, errors.Join(err, terminate())
	}

	return db, func() error {
		db.Close()
		return terminate()
	}, nil
}

// Main is a TestMain body: it starts the database, hands it to bind, runs the
// package tests and exits with their status.
func Main(m *testing.M, maxConns int, bind func(*sql.DB)) {
	db, teardown, err := Start(context.Background(), maxConns)
	if err != nil {
		log.Fatalf("integration database: %v", err)
	}
	bind(db)

	code := m.Run()

	if err := teardown(); err != nil {
		log.Printf("teardown: %v", err)
	}
	os.Exit(code)
}
