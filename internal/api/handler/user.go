package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/birthday-notifier/internal/api/respond"
	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/user"
)

const usersCacheKey = "users:list"

// CreateUserRequest is the POST /user body.
type CreateUserRequest struct {
	FirstName   string     `json:"first_name" validate:"required"`
	LastName    string     `json:"last_name" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Birthday    *user.Date `json:"birthday" validate:"required"`
	Anniversary *user.Date `json:"anniversary"`
	City        string     `json:"city" validate:"required"`
	Status      string     `json:"status" validate:"required,oneof=active inactive"`
}

// UpdateUserRequest is the PUT /user/{id} body: a partial field map.
type UpdateUserRequest struct {
	FirstName   *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName    *string    `json:"last_name" validate:"omitempty,min=1"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Birthday    *user.Date `json:"birthday"`
	Anniversary *user.Date `json:"anniversary"`
	City        *string    `json:"city" validate:"omitempty,min=1"`
	Status      *string    `json:"status" validate:"omitempty,oneof=active inactive"`
}

// CreateUser handles POST /user.
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User fields"
// @Success 201 {object} user.User
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /user [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", h.fieldMessage(err))
		return
	}

	created, err := h.users.Create(r.Context(), user.NewUser{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Birthday:    *req.Birthday,
		Anniversary: req.Anniversary,
		City:        req.City,
		Status:      user.Status(req.Status),
	})
	if err != nil {
		h.logger.Error("create user failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error creating user")
		return
	}

	h.cache.Invalidate(usersCacheKey)
	respond.WriteJSONObject(w, http.StatusCreated, created)
}

// ListUsers handles GET /users.
// @Summary List all users
// @Tags users
// @Produce json
// @Success 200 {array} user.User
// @Failure 500 {object} respond.ErrorResponse
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ifNoneMatch := r.Header.Get("If-None-Match")

	if data, etag, ok := h.cache.Get(usersCacheKey); ok {
		if cache.CheckETagMatch(ifNoneMatch, etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLUsers, true)
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error fetching users")
		return
	}
	if users == nil {
		users = []user.User{}
	}

	data, err := json.Marshal(users)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Error encoding users")
		return
	}

	etag := h.cache.Set(usersCacheKey, data, cache.TTLUsers)
	if cache.CheckETagMatch(ifNoneMatch, etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLUsers, false)
}

// UpdateUser handles PUT /user/{id}.
// @Summary Update a user
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param user body UpdateUserRequest true "Fields to update"
// @Success 200 {object} map[string]string
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /user/{id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", h.fieldMessage(err))
		return
	}

	upd := user.Update{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Birthday:    req.Birthday,
		Anniversary: req.Anniversary,
		City:        req.City,
	}
	if req.Status != nil {
		status := user.Status(*req.Status)
		upd.Status = &status
	}
	if upd == (user.Update{}) {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "no fields to update")
		return
	}

	found, err := h.users.Update(r.Context(), id, upd)
	if err != nil {
		h.logger.Error("update user failed", "error", err, "id", id)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error updating user")
		return
	}
	if !found {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	h.cache.Invalidate(usersCacheKey)
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"message": "User updated successfully"})
}

// DeleteUser handles DELETE /user/{id}.
// @Summary Delete a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /user/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	found, err := h.users.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("delete user failed", "error", err, "id", id)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error deleting user")
		return
	}
	if !found {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	h.cache.Invalidate(usersCacheKey)
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return 0, false
	}
	return id, true
}
