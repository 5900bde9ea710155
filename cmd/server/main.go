// Package main implements the entry point for the cards API server, which
// stores users' flashcards and generates new ones from text with an LLM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/cards-api/internal/config"
	"github.com/phrazzld/cards-api/internal/platform/logger"
)

// options holds the parsed command-line flags.
type options struct {
	migrate string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.migrate, "migrate", "",
		"run a migration command (up, down, status, version) and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.migrate != "" && !isMigrationCommand(opts.migrate) {
		return options{}, fmt.Errorf("unknown migration command %q", opts.migrate)
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Bool("memory_store", cfg.Database.UsesMemoryStore()),
		slog.Bool("generation_enabled", cfg.LLM.GenerationEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.migrate != "" {
		return runMigrationCommand(ctx, cfg, opts.migrate, log)
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
