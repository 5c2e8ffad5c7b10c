// Package apperr defines the error taxonomy surfaced by the HTTP API.
//
// Every domain failure is an *Error carrying the HTTP status, a stable
// machine-readable code, and a user-facing message. Anything that is not an
// *Error is treated as an internal failure by the response writers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "error" field of failure envelopes.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbiddenRole   = "FORBIDDEN_ROLE"
	CodeInternal        = "INTERNAL_ERROR"
	CodeInvalidParam    = "INVALID_PARAM"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"

	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeFolderNotFound     = "FOLDER_NOT_FOUND"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeParentNotFound     = "PARENT_FOLDER_NOT_FOUND"
	CodeFileMissing        = "FILE_MISSING_ON_SERVER"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidFileType    = "INVALID_FILE_TYPE"
	CodeFileNotProvided    = "FILE_NOT_PROVIDED"

	CodeGroupFolderPermissionNotFound = "GROUP_FOLDER_PERMISSION_NOT_FOUND"
	CodeGroupFilePermissionNotFound   = "GROUP_FILE_PERMISSION_NOT_FOUND"
	CodeGroupHasFolderPermission      = "GROUP_ALREADY_HAS_FOLDER_PERMISSION"
	CodeGroupHasFilePermission        = "GROUP_ALREADY_HAS_FILE_PERMISSION"

	CodeUserExists        = "USER_ALREADY_EXISTS"
	CodeGroupExists       = "GROUP_ALREADY_EXISTS"
	CodeFolderExists      = "FOLDER_ALREADY_EXISTS"
	CodeFileExists        = "FILE_ALREADY_EXISTS"
	CodeUserAlreadyInGrp  = "USER_ALREADY_IN_GROUP"
	CodeUserNotInGroup    = "USER_NOT_IN_GROUP"
	CodeCannotDeleteSelf  = "CANNOT_DELETE_SELF"
	CodeCannotDisableSelf = "CANNOT_DISABLE_SELF"
)

// Error is a classified application failure.
type Error struct {
	Status  int
	Code    string
	Message string
	// Detail is written to logs only, never to the client.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of e carrying an internal log detail.
func (e *Error) WithDetail(format string, args ...interface{}) *Error {
	cp := *e
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

// New creates an Error with an explicit status.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Unauthenticated is returned when no valid active identity is attached to the request.
func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthenticated, message)
}

// ForbiddenRole is returned by the role gate.
func ForbiddenRole() *Error {
	return New(http.StatusForbidden, CodeForbiddenRole, "You do not have permission to perform this action")
}

// NotFound classifies a missing resource.
func NotFound(code, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

// Conflict classifies a duplicate or already-present resource. The API reports
// conflicts as 400.
func Conflict(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

// BadRequest classifies invalid input.
func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

// Internal wraps an unexpected failure. The message is generic.
func Internal(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// StatusOf returns the HTTP status for err, 500 for unclassified errors.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
