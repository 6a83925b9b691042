package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/birthday-notifier/internal/api/handler"
	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(
	users handler.Users,
	resolver handler.Resolver,
	mailer handler.Mailer,
	db handler.Pinger,
	appCache *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(users, resolver, mailer, db, appCache, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// Liveness + city resolution
	r.Get("/test", h.Test)
	r.Get("/test/{city}", h.TestCity)

	// User registry
	r.Post("/user", h.CreateUser)
	r.Get("/users", h.ListUsers)
	r.Put("/user/{id}", h.UpdateUser)
	r.Delete("/user/{id}", h.DeleteUser)

	// Ad-hoc mail
	r.Post("/send-email", h.SendEmail)

	return r
}
