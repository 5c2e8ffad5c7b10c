package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	recorder
	mu     sync.Mutex
	events []*AuditEvent
	err    error
	closed bool
}

func newMockLogger() *mockLogger {
	m := &mockLogger{}
	m.recorder = recorder{log: m.Log}
	return m
}

func (m *mockLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockLogger) Close() error {
	m.closed = true
	return nil
}

func (m *mockLogger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockLogger) last() *AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func TestMultiLogger_Log_Sync(t *testing.T) {
	logger1 := newMockLogger()
	logger2 := newMockLogger()

	multiLogger := NewMultiLogger(logger1, logger2)
	multiLogger.SetAsync(false)

	event := &AuditEvent{
		Timestamp: time.Now(),
		EventType: EventTypeAuthLogin,
		Status:    EventStatusSuccess,
	}

	require.NoError(t, multiLogger.Log(context.Background(), event))

	assert.Equal(t, 1, logger1.count())
	assert.Equal(t, 1, logger2.count())
}

func TestMultiLogger_Log_Async(t *testing.T) {
	logger1 := newMockLogger()
	logger2 := newMockLogger()

	multiLogger := NewMultiLogger(logger1, logger2)

	event := &AuditEvent{
		Timestamp: time.Now(),
		EventType: EventTypeAuthLogin,
		Status:    EventStatusSuccess,
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, multiLogger.Log(ctx, event))
	cancel()

	multiLogger.Wait()

	assert.Equal(t, 1, logger1.count())
	assert.Equal(t, 1, logger2.count())
}

func TestMultiLogger_SyncReturnsFirstError(t *testing.T) {
	failing := newMockLogger()
	failing.err = errors.New("disk full")
	ok := newMockLogger()

	multiLogger := NewMultiLogger(failing, ok)
	multiLogger.SetAsync(false)

	err := multiLogger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogout})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, ok.count(), "later loggers still receive the event")
}

func TestMultiLogger_AsyncCollectsErrors(t *testing.T) {
	failing := newMockLogger()
	failing.err = errors.New("unreachable")

	multiLogger := NewMultiLogger(failing)
	require.NoError(t, multiLogger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogout}))
	multiLogger.Wait()

	errs := multiLogger.GetErrors()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "unreachable")
	assert.Empty(t, multiLogger.GetErrors())
}

func TestMultiLogger_LogAuthorization(t *testing.T) {
	logger1 := newMockLogger()
	multiLogger := NewMultiLogger(logger1)
	multiLogger.SetAsync(false)

	userID := int64(456)
	err := multiLogger.LogAuthorization(context.Background(), EventTypeAuthzFolderGrant, &userID, ResourceTypeFolder, "12", EventStatusSuccess, "grant")
	require.NoError(t, err)

	event := logger1.last()
	require.NotNil(t, event)
	assert.Equal(t, EventTypeAuthzFolderGrant, event.EventType)
	assert.Equal(t, ResourceTypeFolder, event.ResourceType)
	assert.Equal(t, "12", event.ResourceID)
	assert.Equal(t, int64(456), *event.UserID)
}

func TestMultiLogger_LogDataMutation(t *testing.T) {
	logger1 := newMockLogger()
	multiLogger := NewMultiLogger(logger1)
	multiLogger.SetAsync(false)

	userID := int64(789)
	changes := &ChangeDetails{
		Before: map[string]interface{}{"folder_name": "old"},
		After:  map[string]interface{}{"folder_name": "new"},
	}

	err := multiLogger.LogDataMutation(context.Background(), EventTypeDataFolderUpdate, &userID, ResourceTypeFolder, "3", changes, "renamed")
	require.NoError(t, err)

	event := logger1.last()
	require.NotNil(t, event)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.Same(t, changes, event.Changes)
}

func TestMultiLogger_LogAdminAction(t *testing.T) {
	logger1 := newMockLogger()
	multiLogger := NewMultiLogger(logger1)
	multiLogger.SetAsync(false)

	admin, target := int64(1), int64(9)
	require.NoError(t, multiLogger.LogAdminAction(context.Background(), EventTypeAdminUserDeactivate, &admin, &target, "deactivated"))

	event := logger1.last()
	require.NotNil(t, event)
	assert.Equal(t, "9", event.ResourceID)
	assert.Equal(t, int64(9), event.Metadata["target_user_id"])
}

func TestMultiLogger_Close(t *testing.T) {
	logger1 := newMockLogger()
	logger2 := newMockLogger()

	multiLogger := NewMultiLogger(logger1, logger2)
	require.NoError(t, multiLogger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogin}))
	require.NoError(t, multiLogger.Close())

	assert.True(t, logger1.closed)
	assert.True(t, logger2.closed)
	assert.Equal(t, 1, logger1.count())
}

func TestMultiLogger_Empty(t *testing.T) {
	multiLogger := NewMultiLogger()
	assert.NoError(t, multiLogger.Log(context.Background(), &AuditEvent{}))
	assert.NoError(t, multiLogger.Close())
}
