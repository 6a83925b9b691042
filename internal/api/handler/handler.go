// Package handler provides HTTP handlers for all API endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/albapepper/birthday-notifier/internal/api/respond"
	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/timezone"
	"github.com/albapepper/birthday-notifier/internal/user"
)

// Users is the store surface the handlers consume.
type Users interface {
	Create(ctx context.Context, n user.NewUser) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id int64, upd user.Update) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Resolver maps city names to timezone candidates.
type Resolver interface {
	Resolve(city string) []timezone.Candidate
}

// Mailer sends one ad-hoc message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Pinger verifies store connectivity for the health endpoint.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	users    Users
	resolver Resolver
	mailer   Mailer
	db       Pinger
	cache    *cache.Cache
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(users Users, resolver Resolver, mailer Mailer, db Pinger, c *cache.Cache, logger *slog.Logger) *Handler {
	v := validator.New()
	// Report field names by their json tag so validation messages match the
	// wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		users:    users,
		resolver: resolver,
		mailer:   mailer,
		db:       db,
		cache:    c,
		validate: v,
		logger:   logger,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Birthday Notifier API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// fieldMessage turns the first validation failure into a field-specific
// message, e.g. `email is required`.
func (h *Handler) fieldMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return fe.Field() + " must be a valid email address"
		case "oneof":
			return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		case "min":
			return fe.Field() + " must not be empty"
		default:
			return fe.Field() + " is invalid"
		}
	}
	return "invalid request body"
}
