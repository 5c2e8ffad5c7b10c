package audit

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/observability"
)

func TestFromContext(t *testing.T) {
	t.Run("falls back to no-op", func(t *testing.T) {
		logger := FromContext(context.Background())
		require.NotNil(t, logger)
		assert.NoError(t, logger.LogAuthentication(context.Background(), EventTypeAuthLogin, nil, "x", EventStatusSuccess, ""))
	})

	t.Run("returns attached logger", func(t *testing.T) {
		mock := newMockLogger()
		ctx := WithLogger(context.Background(), mock)
		assert.Same(t, mock, FromContext(ctx))
	})
}

func TestBuildBaseEvent(t *testing.T) {
	ctx := contextkeys.WithAuth(context.Background(), &auth.AuthContext{
		User: &auth.User{ID: 11, Username: "carol"},
	})
	ctx = contextkeys.WithRequestID(ctx, "r-9")
	ctx = WithRequestInfo(ctx, &RequestInfo{IPAddress: "192.0.2.1", Method: "DELETE", Path: "/folders/4"})

	event := buildBaseEvent(ctx, EventTypeDataFolderDelete, EventStatusSuccess)

	require.NotNil(t, event.UserID)
	assert.Equal(t, int64(11), *event.UserID)
	assert.Equal(t, "carol", event.Username)
	assert.Equal(t, "r-9", event.RequestID)
	assert.Equal(t, "192.0.2.1", event.IPAddress)
	assert.Equal(t, "DELETE", event.Method)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Metadata)
}

func TestBuildBaseEvent_Anonymous(t *testing.T) {
	event := buildBaseEvent(context.Background(), EventTypeAuthLoginFailed, EventStatusFailure)

	assert.Nil(t, event.UserID)
	assert.Empty(t, event.Username)
	assert.Empty(t, event.IPAddress)
}

func TestLogAuthentication_ExplicitUserWins(t *testing.T) {
	mock := newMockLogger()
	ctx := contextkeys.WithAuth(context.Background(), &auth.AuthContext{User: &auth.User{ID: 1}})

	uid := int64(2)
	require.NoError(t, mock.LogAuthentication(ctx, EventTypeAuthLogin, &uid, "dave", EventStatusSuccess, "login"))

	event := mock.last()
	assert.Equal(t, int64(2), *event.UserID)
	assert.Equal(t, "dave", event.Username)
	assert.Equal(t, ResourceTypeUser, event.ResourceType)
}

func TestMiddleware(t *testing.T) {
	mock := newMockLogger()

	var got *RequestInfo
	var gotLogger Logger
	handler := Middleware(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(contextkeys.AuditRequestKey).(*RequestInfo)
		gotLogger = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.5:4242"
	req.Header.Set("User-Agent", "folio-test")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "203.0.113.5", got.IPAddress)
	assert.Equal(t, "folio-test", got.UserAgent)
	assert.Equal(t, "/auth/login", got.Path)
	assert.Same(t, mock, gotLogger)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, remote: "10.0.0.1:1", want: "198.51.100.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:1", want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.9:5555", want: "192.0.2.9"},
		{name: "remote without port", remote: "192.0.2.10", want: "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger(observability.NewLogger(observability.InfoLevel, &buf))

	uid := int64(3)
	require.NoError(t, logger.LogAuthorization(context.Background(), EventTypeAuthzAccessDenied, &uid, ResourceTypeRoute, "/users", EventStatusDenied, "role USER not allowed"))

	out := buf.String()
	assert.Contains(t, out, `"level":"warning"`)
	assert.Contains(t, out, `"event_type":"authz.access_denied"`)
	assert.Contains(t, out, `"actor_id":3`)
	assert.Contains(t, out, "role USER not allowed")

	buf.Reset()
	require.NoError(t, logger.LogDataMutation(context.Background(), EventTypeDataFolderCreate, &uid, ResourceTypeFolder, "8", nil, "folder created"))
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.NoError(t, logger.Close())
}
