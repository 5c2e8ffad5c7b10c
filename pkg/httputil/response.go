// Package httputil provides HTTP handler utilities for the response envelopes,
// JSON decoding, and request parsing shared by every API package.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/observability"
)

// DataResponse is the envelope for successful reads
type DataResponse struct {
	Error interface{} `json:"error"`
	Data  interface{} `json:"data"`
}

// MessageResponse is the envelope for successful writes
type MessageResponse struct {
	Error   interface{} `json:"error"`
	Message string      `json:"message"`
}

// ErrorResponse is the envelope for failures
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteData writes {"error":null,"data":...}
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	_ = WriteJSON(w, status, DataResponse{Data: data})
}

// WriteSuccess writes a 200 data envelope
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteData(w, http.StatusOK, data)
}

// WriteMessage writes {"error":null,"message":...}
func WriteMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, MessageResponse{Message: message})
}

// WriteCreated writes a 201 message envelope
func WriteCreated(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusCreated, message)
}

// WriteError renders err as a failure envelope. Classified errors keep their
// status, code and message; anything else becomes a generic 500 and the cause
// is only logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err)
	}

	logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":   appErr.Code,
		"status": appErr.Status,
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if appErr.Detail != "" {
		logger = logger.WithField("detail", appErr.Detail)
	}

	if appErr.Status >= http.StatusInternalServerError {
		logger.WithError(appErr.Err).Error("request failed")
	} else {
		logger.Warn(appErr.Message)
	}

	_ = WriteJSON(w, appErr.Status, ErrorResponse{
		Message: appErr.Message,
		Error:   appErr.Code,
	})
}

// WriteInternalError writes a generic 500 failure envelope
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, apperr.Internal(err))
}
