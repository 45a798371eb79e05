package database

import (
	"database/sql"
	"fmt"

	"shop-core/migrations"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func useEmbeddedMigrations() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// RunMigrations applies the pending schema migrations embedded in the binary
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	if err := useEmbeddedMigrations(); err != nil {
		return err
	}

	before, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("Schema up to date", zap.Int64("from_version", before), zap.Int64("version", version))
	return nil
}

// MigrationStatus logs the applied state of every embedded migration
func MigrationStatus(db *sql.DB) error {
	if err := useEmbeddedMigrations(); err != nil {
		return err
	}
	return goose.Status(db, ".")
}
