package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/birthday-notifier/internal/api/respond"
	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/mailer"
)

// SendEmailRequest is the POST /send-email body.
type SendEmailRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Test handles GET /test (liveness).
// @Summary Liveness check
// @Tags meta
// @Produce plain
// @Success 200 {string} string
// @Router /test [get]
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	respond.WriteText(w, http.StatusOK, "Service Is Running")
}

// TestCity handles GET /test/{city}: resolves a city name to its IANA
// timezone identifier (first candidate).
// @Summary Resolve a city to a timezone
// @Tags meta
// @Produce plain
// @Param city path string true "City name"
// @Success 200 {string} string "IANA timezone identifier"
// @Failure 404 {object} respond.ErrorResponse
// @Router /test/{city} [get]
func (h *Handler) TestCity(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	key := "tz:" + city
	ifNoneMatch := r.Header.Get("If-None-Match")

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(ifNoneMatch, etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		w.Header().Set("ETag", etag)
		respond.WriteText(w, http.StatusOK, string(data))
		return
	}

	candidates := h.resolver.Resolve(city)
	if len(candidates) == 0 {
		respond.WriteError(w, http.StatusNotFound, "CITY_UNKNOWN", "No timezone match for city "+city)
		return
	}

	zone := candidates[0].Timezone
	etag := h.cache.Set(key, []byte(zone), cache.TTLTimezone)
	w.Header().Set("ETag", etag)
	respond.WriteText(w, http.StatusOK, zone)
}

// SendEmail handles POST /send-email: ad-hoc dispatch through the mail
// transport, bypassing delivery tracking entirely.
// @Summary Send an ad-hoc email
// @Tags mail
// @Accept json
// @Produce json
// @Param mail body SendEmailRequest true "Message fields"
// @Success 200 {object} map[string]string
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /send-email [post]
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", h.fieldMessage(err))
		return
	}

	if err := h.mailer.Send(r.Context(), req.Email, req.Subject, req.Message); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			respond.WriteError(w, http.StatusServiceUnavailable, "MAIL_DISABLED", "Outbound mail is not configured")
			return
		}
		h.logger.Error("ad-hoc send failed", "error", err, "to", req.Email)
		respond.WriteError(w, http.StatusInternalServerError, "SEND_FAILED", "Error sending email")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"message": "Test email sent"})
}
