package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/cards-api/internal/api"
	apiMiddleware "github.com/phrazzld/cards-api/internal/api/middleware"
	"github.com/phrazzld/cards-api/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	if secs := app.config.Server.RequestTimeoutSeconds; secs > 0 {
		r.Use(middleware.Timeout(time.Duration(secs) * time.Second))
	}
	if origins := app.config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{apiMiddleware.TraceIDHeader},
			MaxAge:         300,
		}))
	}

	authHandler := api.NewAuthHandler(app.userService, app.jwtService, app.logger)
	flashcardHandler := api.NewFlashcardHandler(app.flashcardService, app.identity, app.logger)
	generationHandler := api.NewGenerationHandler(app.generationService, app.identity, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/flashcards", flashcardHandler.CreateFlashcard)
			r.Get("/flashcards", flashcardHandler.GetFlashcards)

			r.Post("/ai/sessions", generationHandler.CreateSession)
			r.Get("/ai/sessions/{id}", generationHandler.GetSession)
			r.Get("/ai/sessions/{id}/suggestions", generationHandler.GetSuggestions)
			r.Post("/ai/sessions/{id}/approve", generationHandler.ApproveSuggestions)
		})
	})

	r.Get("/health", app.handleHealth)

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string `json:"status"`
	Generation bool   `json:"generation"`
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if app.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.db.PingContext(ctx); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{
		Status:     "ok",
		Generation: app.generationService.Enabled(),
	})
}
