package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
		code   string
	}{
		{"unauthenticated", Unauthenticated(""), http.StatusUnauthorized, CodeUnauthenticated},
		{"forbidden role", ForbiddenRole(), http.StatusForbidden, CodeForbiddenRole},
		{"not found", NotFound(CodeFolderNotFound, "Folder not found"), http.StatusNotFound, CodeFolderNotFound},
		{"conflict is 400", Conflict(CodeGroupHasFolderPermission, "dup"), http.StatusBadRequest, CodeGroupHasFolderPermission},
		{"bad request", BadRequest(CodeInvalidParam, "bad"), http.StatusBadRequest, CodeInvalidParam},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestAsThroughWrapping(t *testing.T) {
	base := NotFound(CodeGroupNotFound, "Group not found")
	wrapped := fmt.Errorf("add member: %w", base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeGroupNotFound, got.Code)
	assert.True(t, HasCode(wrapped, CodeGroupNotFound))
	assert.False(t, HasCode(wrapped, CodeFolderNotFound))
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)

	assert.Equal(t, "Internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestWithDetailCopies(t *testing.T) {
	base := ForbiddenRole()
	detailed := base.WithDetail("user %d on %s", 7, "POST /groups")

	assert.Empty(t, base.Detail)
	assert.Equal(t, "user 7 on POST /groups", detailed.Detail)
	assert.Equal(t, base.Code, detailed.Code)
}
