package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/MaxMateus/ms-auth/internal/config"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies pending schema migrations. It opens a short-lived
// database/sql connection for goose; the application pool uses pgx.
func Migrate(cfg *config.DatabaseConfig, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := MigrateDB(db); err != nil {
		return err
	}

	logger.Info("database migrations applied")
	return nil
}

// MigrateDB applies the embedded migrations to an already-open connection
func MigrateDB(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
