package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
)

const sessionSecret = "fedcba9876543210fedcba9876543210"

type sessionFixture struct {
	store     *Store
	tokens    *auth.TokenManager
	metrics   *observability.Metrics
	public    *mux.Router
	protected *mux.Router
}

func newSessionFixture(t *testing.T, limiter middleware.Limiter) *sessionFixture {
	t.Helper()
	db := dbtest.New(t)
	store := NewStore(db)
	tokens := auth.NewTokenManager(sessionSecret, time.Minute)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	public := mux.NewRouter()
	protected := mux.NewRouter()
	protected.Use(middleware.NewAuthMiddleware(tokens, NewResolver(store, 0, 0), metrics).Handler)

	NewSessionHandlers(store, tokens, limiter, metrics, false).RegisterRoutes(public, protected)
	return &sessionFixture{store: store, tokens: tokens, metrics: metrics, public: public, protected: protected}
}

func (f *sessionFixture) createUser(t *testing.T, username, password string, active bool) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user, err := f.store.Create(context.Background(), CreateInput{
		Username:     username,
		FullName:     "Session Tester",
		PasswordHash: hash,
		Role:         auth.RoleUser,
	})
	require.NoError(t, err)
	if !active {
		require.NoError(t, f.store.SetActive(context.Background(), user.ID, false))
	}
	return user
}

func (f *sessionFixture) login(username, password string) *httptest.ResponseRecorder {
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	w := httptest.NewRecorder()
	f.public.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice", "correct-horse", true)

	w := f.login("alice", "correct-horse")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, user.ID, body.UserID)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	claims, err := f.tokens.Validate(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues("success")))
}

func TestLogin_Failures(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.createUser(t, "bob", "correct-horse", true)
	f.createUser(t, "carol", "correct-horse", false)

	tests := []struct {
		name     string
		username string
		password string
		status   int
		code     string
		outcome  string
	}{
		{"unknown user", "nobody", "whatever1", http.StatusNotFound, apperr.CodeUserNotFound, "unknown_user"},
		{"bad password", "bob", "wrong-horse", http.StatusUnauthorized, apperr.CodeInvalidCredentials, "bad_password"},
		{"disabled", "carol", "correct-horse", http.StatusUnauthorized, apperr.CodeUnauthenticated, "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.login(tt.username, tt.password)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
			assert.Nil(t, sessionCookie(w))
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues(tt.outcome)))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":""}`))
	w := httptest.NewRecorder()
	f.public.ServeHTTP(w, req)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, w))
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	f := newSessionFixture(t, limiter)

	w := f.login("nobody", "whatever1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.login("nobody", "whatever1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperr.CodeRateLimited, errorCode(t, w))
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestMeAndLogout(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "dave", "correct-horse", true)

	w := f.login("dave", "correct-horse")
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	f.protected.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me struct {
		Error interface{} `json:"error"`
		Data  meResponse  `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.Data.UserID)
	assert.Equal(t, "dave", me.Data.Username)
	assert.Equal(t, auth.RoleUser, me.Data.Role)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w = httptest.NewRecorder()
	f.protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	f.public.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":null,"message":"Logged out successfully"}`, w.Body.String())

	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}
