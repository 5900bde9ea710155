package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/cards-api/internal/config"
	"github.com/phrazzld/cards-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
)

var migrationCommands = []string{"up", "down", "status", "version"}

func isMigrationCommand(cmd string) bool {
	for _, c := range migrationCommands {
		if c == cmd {
			return true
		}
	}
	return false
}

// slogGooseLogger forwards goose output to slog. Fatalf does not exit so
// the error reaches main.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// runMigrationCommand opens the configured database and runs one goose
// command against the embedded migrations.
func runMigrationCommand(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.UsesMemoryStore() {
		return fmt.Errorf("migrations need a PostgreSQL database, not %q", config.MemoryDatabaseURL)
	}

	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	return runMigrations(ctx, db, command, logger)
}

// runMigrations executes command with goose.
func runMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !isMigrationCommand(command) {
		return fmt.Errorf("unknown migration command %q", command)
	}

	log := logger.With(slog.String("component", "migrations"), slog.String("command", command))
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetBaseFS(postgres.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	log.Info("running migrations")
	if err := goose.RunContext(ctx, command, db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	log.Info("migrations finished")
	return nil
}
