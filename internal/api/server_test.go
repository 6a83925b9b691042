package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/config"
	"github.com/albapepper/birthday-notifier/internal/mailer"
	"github.com/albapepper/birthday-notifier/internal/timezone"
	"github.com/albapepper/birthday-notifier/internal/user"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeUsers struct {
	users     []user.User
	createErr error
	created   []user.NewUser
	updated   map[int64]user.Update
	deleted   []int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{updated: map[int64]user.Update{}}
}

func (f *fakeUsers) Create(ctx context.Context, n user.NewUser) (user.User, error) {
	if f.createErr != nil {
		return user.User{}, f.createErr
	}
	f.created = append(f.created, n)
	u := user.User{
		ID:        int64(len(f.created)),
		FirstName: n.FirstName,
		LastName:  n.LastName,
		Email:     n.Email,
		Birthday:  n.Birthday,
		City:      n.City,
		Status:    n.Status,
		CreatedAt: time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC),
	}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]user.User, error) {
	return f.users, nil
}

func (f *fakeUsers) Update(ctx context.Context, id int64, upd user.Update) (bool, error) {
	for _, u := range f.users {
		if u.ID == id {
			f.updated[id] = upd
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id int64) (bool, error) {
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			f.deleted = append(f.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeMailer struct {
	sent int
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	return nil
}

type fakePinger struct{ err error }

func (f *fakePinger) HealthCheck(ctx context.Context) error { return f.err }

// --------------------------------------------------------------------------
// Test server
// --------------------------------------------------------------------------

func testRouter(t *testing.T, users *fakeUsers, mailer *fakeMailer) http.Handler {
	t.Helper()
	resolver, err := timezone.Default()
	require.NoError(t, err)

	cfg := &config.Config{
		CORSAllowOrigins: []string{"*"},
		RateLimitEnabled: false,
		CacheEnabled:     true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(users, resolver, mailer, &fakePinger{}, cache.New(true), cfg, logger)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --------------------------------------------------------------------------
// Meta endpoints
// --------------------------------------------------------------------------

func TestRoot(t *testing.T) {
	h := testRouter(t, newFakeUsers(), &fakeMailer{})
	rec := doJSON(t, h, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Birthday Notifier API")
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
}

func TestHealth(t *testing.T) {
	h := testRouter(t, newFakeUsers(), &fakeMailer{})

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health/db", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connected")

	rec = doJSON(t, h, http.MethodGet, "/health/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthDBDown(t *testing.T) {
	resolver, err := timezone.Default()
	require.NoError(t, err)
	cfg := &config.Config{RateLimitEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(newFakeUsers(), resolver, &fakeMailer{},
		&fakePinger{err: errors.New("dial tcp: refused")}, cache.New(false), cfg, logger)

	rec := doJSON(t, h, http.MethodGet, "/health/db", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}

func TestLiveness(t *testing.T) {
	h := testRouter(t, newFakeUsers(), &fakeMailer{})
	rec := doJSON(t, h, http.MethodGet, "/test", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service Is Running", rec.Body.String())
}

func TestResolveCity(t *testing.T) {
	h := testRouter(t, newFakeUsers(), &fakeMailer{})

	rec := doJSON(t, h, http.MethodGet, "/test/Jakarta", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asia/Jakarta", rec.Body.String())
	etag := rec.Header().Get("ETag")
	assert.NotEmpty(t, etag)

	// Second hit is served from cache and honours If-None-Match.
	req := httptest.NewRequest(http.MethodGet, "/test/Jakarta", nil)
	req.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusNotModified, rec2.Code)
}

func TestResolveCityUnknown(t *testing.T) {
	h := testRouter(t, newFakeUsers(), &fakeMailer{})
	rec := doJSON(t, h, http.MethodGet, "/test/Atlantis", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "CITY_UNKNOWN")
}

// --------------------------------------------------------------------------
// User CRUD
// --------------------------------------------------------------------------

const validUserBody = `{
	"first_name": "Jane",
	"last_name": "Doe",
	"email": "jane@example.com",
	"birthday": "1990-05-17",
	"city": "Jakarta",
	"status": "active"
}`

func TestCreateUser(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})

	rec := doJSON(t, h, http.MethodPost, "/user", validUserBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.Equal(t, "1990-05-17", got.Birthday.Format("2006-01-02"))
	require.Len(t, users.created, 1)
}

func TestCreateUserValidation(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing email", `{"first_name":"Jane","last_name":"Doe","birthday":"1990-05-17","city":"Jakarta","status":"active"}`, "email is required"},
		{"bad email", `{"first_name":"Jane","last_name":"Doe","email":"nope","birthday":"1990-05-17","city":"Jakarta","status":"active"}`, "email must be a valid email address"},
		{"missing birthday", `{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","city":"Jakarta","status":"active"}`, "birthday is required"},
		{"bad status", `{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","birthday":"1990-05-17","city":"Jakarta","status":"paused"}`, "status must be one of: active, inactive"},
		{"bad date format", `{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","birthday":"17-05-1990","city":"Jakarta","status":"active"}`, "invalid date"},
		{"not json", `not json`, "invalid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/user", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, strings.ToLower(rec.Body.String()), strings.ToLower(tc.want))
		})
	}
	assert.Empty(t, users.created, "no store call on a rejected body")
}

func TestListUsers(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})

	// Empty registry serialises as an empty array, not null.
	rec := doJSON(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	doJSON(t, h, http.MethodPost, "/user", validUserBody)

	rec = doJSON(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Jane", got[0].FirstName)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// Conditional re-fetch hits the cache.
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusNotModified, rec2.Code)
}

func TestListUsersCacheInvalidatedOnWrite(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})

	doJSON(t, h, http.MethodPost, "/user", validUserBody)
	rec := doJSON(t, h, http.MethodGet, "/users", "")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = doJSON(t, h, http.MethodDelete, "/user/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The stale ETag no longer matches after the delete.
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec2.Body.String()))
}

func TestUpdateUser(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})
	doJSON(t, h, http.MethodPost, "/user", validUserBody)

	rec := doJSON(t, h, http.MethodPut, "/user/1", `{"city":"Sydney"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "User updated successfully")

	upd, ok := users.updated[1]
	require.True(t, ok)
	require.NotNil(t, upd.City)
	assert.Equal(t, "Sydney", *upd.City)
	assert.Nil(t, upd.Email)
}

func TestUpdateUserErrors(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})
	doJSON(t, h, http.MethodPost, "/user", validUserBody)

	rec := doJSON(t, h, http.MethodPut, "/user/999", `{"city":"Sydney"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/user/abc", `{"city":"Sydney"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid user ID")

	rec = doJSON(t, h, http.MethodPut, "/user/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no fields to update")

	rec = doJSON(t, h, http.MethodPut, "/user/1", `{"status":"paused"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	users := newFakeUsers()
	h := testRouter(t, users, &fakeMailer{})
	doJSON(t, h, http.MethodPost, "/user", validUserBody)

	rec := doJSON(t, h, http.MethodDelete, "/user/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User deleted successfully")

	rec = doJSON(t, h, http.MethodDelete, "/user/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --------------------------------------------------------------------------
// Ad-hoc mail
// --------------------------------------------------------------------------

func TestSendEmail(t *testing.T) {
	mailer := &fakeMailer{}
	h := testRouter(t, newFakeUsers(), mailer)

	rec := doJSON(t, h, http.MethodPost, "/send-email",
		`{"email":"jane@example.com","subject":"Hello","message":"Hi there"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Test email sent")
	assert.Equal(t, 1, mailer.sent)
}

func TestSendEmailValidation(t *testing.T) {
	mailer := &fakeMailer{}
	h := testRouter(t, newFakeUsers(), mailer)

	rec := doJSON(t, h, http.MethodPost, "/send-email", `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "subject is required")
	assert.Zero(t, mailer.sent)
}

func TestSendEmailWithoutTransport(t *testing.T) {
	resolver, err := timezone.Default()
	require.NoError(t, err)
	cfg := &config.Config{RateLimitEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A deployment without SMTP_HOST wires a nil SMTP client into the router.
	h := NewRouter(newFakeUsers(), resolver, (*mailer.SMTP)(nil),
		&fakePinger{}, cache.New(false), cfg, logger)

	rec := doJSON(t, h, http.MethodPost, "/send-email",
		`{"email":"jane@example.com","subject":"Hello","message":"Hi there"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "MAIL_DISABLED")
}

func TestSendEmailTransportFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp: timeout")}
	h := testRouter(t, newFakeUsers(), mailer)

	rec := doJSON(t, h, http.MethodPost, "/send-email",
		`{"email":"jane@example.com","subject":"Hello","message":"Hi there"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SEND_FAILED")
}
