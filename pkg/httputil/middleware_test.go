package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})

	var seen string
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		handler.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := Chain(RequestIDMiddleware(logger), LoggingMiddleware)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/folders/3", nil))

	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/folders/3"`)
	assert.Contains(t, out, "request_id")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperr.CodeInternal)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://app.local"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "http://app.local")
		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "http://evil.local")
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NotFoundHandler().ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), apperr.CodeNotFound)
}
