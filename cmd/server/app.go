package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cards-api/internal/config"
	"github.com/phrazzld/cards-api/internal/generation"
	"github.com/phrazzld/cards-api/internal/platform/gemini"
	"github.com/phrazzld/cards-api/internal/platform/memory"
	"github.com/phrazzld/cards-api/internal/platform/postgres"
	"github.com/phrazzld/cards-api/internal/service"
	"github.com/phrazzld/cards-api/internal/service/auth"
	"github.com/phrazzld/cards-api/internal/store"
	"github.com/phrazzld/cards-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when the API runs on the in-process stores.
	db         *sql.DB
	stores     store.Stores
	transactor store.Transactor

	jwtService auth.JWTService
	passwords  *auth.BcryptVerifier
	identity   *auth.IdentityResolver

	// generator is nil when no LLM is configured.
	generator  generation.Generator
	taskRunner *task.TaskRunner

	userService       service.UserService
	flashcardService  service.FlashcardService
	generationService service.GenerationService
}

// appOption customizes newApplication.
type appOption func(*application)

// withGenerator replaces the configured LLM generator.
func withGenerator(g generation.Generator) appOption {
	return func(app *application) {
		app.generator = g
	}
}

// newApplication creates a new application instance with all dependencies
// initialized and the background task runner started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.setupStores(ctx); err != nil {
		return nil, err
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.passwords = auth.NewBcryptVerifier(cfg.Auth.BCryptCost)
	app.identity = auth.NewIdentityResolver(app.stores.Users, logger)
	app.userService = service.NewUserService(app.stores.Users, app.transactor, app.passwords, app.passwords, logger)

	app.flashcardService, err = service.NewFlashcardService(app.stores.Flashcards, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create flashcard service: %w", err)
	}

	if err := app.setupGeneration(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupStores picks PostgreSQL or the in-process stores.
func (app *application) setupStores(ctx context.Context) error {
	if app.config.Database.UsesMemoryStore() {
		db := memory.New(app.logger)
		app.stores = db.Stores()
		app.transactor = db
		app.logger.Warn("using in-memory stores, data will not survive a restart")
		return nil
	}

	db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.db = db
	app.stores = store.Stores{
		Users:      postgres.NewPostgresUserStore(db, app.logger),
		Flashcards: postgres.NewPostgresFlashcardStore(db, app.logger),
		Sessions:   postgres.NewPostgresGenerationSessionStore(db, app.logger),
	}
	app.transactor = store.NewSQLTransactor(db, app.stores)
	return nil
}

// setupGeneration wires the generator, task runner and generation service.
// Without a generator the service still serves existing sessions.
func (app *application) setupGeneration(ctx context.Context) error {
	if app.generator == nil && app.config.LLM.GenerationEnabled() {
		g, err := gemini.NewGeminiGenerator(ctx, app.logger.With(slog.String("component", "llm_generator")), app.config.LLM)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM generator: %w", err)
		}
		app.generator = g
		app.logger.Info("LLM generator initialized", slog.String("model", g.Model()))
	}

	if app.generator == nil {
		app.logger.Warn("no LLM configured, generation sessions are disabled")
		svc, err := service.NewGenerationService(app.stores.Sessions, app.transactor, nil, nil, "", app.logger)
		if err != nil {
			return fmt.Errorf("failed to create generation service: %w", err)
		}
		app.generationService = svc
		return nil
	}

	factory := task.NewGenerationTaskFactory(app.stores.Sessions, app.generator, app.logger)
	runner, err := setupTaskRunner(ctx, app.config.Task, factory, app.logger)
	if err != nil {
		return err
	}
	app.taskRunner = runner

	svc, err := service.NewGenerationService(
		app.stores.Sessions, app.transactor, runner, factory, app.generator.Model(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create generation service: %w", err)
	}
	app.generationService = svc
	return nil
}

// setupTaskRunner creates the background task processor and starts it,
// re-queueing sessions left unfinished by a previous run.
func setupTaskRunner(
	ctx context.Context,
	cfg config.TaskConfig,
	recoverer task.Recoverer,
	logger *slog.Logger,
) (*task.TaskRunner, error) {
	runner := task.NewTaskRunner(recoverer, task.TaskRunnerConfig{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
	}, logger)

	if err := runner.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	return runner, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down and releases
// resources.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
