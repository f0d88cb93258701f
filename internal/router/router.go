package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/mvalente-dev/identity-hub/internal/api/auth"
	"github.com/mvalente-dev/identity-hub/internal/api/user"
	"github.com/mvalente-dev/identity-hub/internal/api/webhook"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	AuthHandler    *auth.Handler
	UserHandler    *user.Handler
	WebhookHandler *webhook.Handler
	// AuthenticateMiddleware is the active request guard (JWT or Clerk mode).
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "svix-id", "svix-timestamp", "svix-signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint (public)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(100, time.Minute))

		// --- Public auth routes ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/signup", cfg.AuthHandler.Signup)
			// Login gets a stricter bucket than the rest of the API.
			r.With(httprate.LimitByIP(10, time.Minute)).Post("/auth/login", cfg.AuthHandler.Login)
		})

		// --- Webhook route ---
		// Public: authenticated by the svix signature, not a bearer token.
		r.Post("/users/webhooks/clerk", cfg.WebhookHandler.HandleClerkWebhook)

		// --- Protected user routes ---
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Get("/users/me", cfg.UserHandler.GetMe)
			r.Post("/users", cfg.UserHandler.CreateUser)
			r.Get("/users/{id}", cfg.UserHandler.GetUserByID)
			r.Patch("/users/{id}", cfg.UserHandler.UpdateUser)
			r.Delete("/users/{id}", cfg.UserHandler.DeleteUser)
		})
	})

	return r
}
