package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/folio/pkg/apperr"
)

// ParseJSON decodes the request body into dest, rejecting unknown fields
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Invalid request body").WithDetail("decode: %v", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes the failure envelope on error
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteError(w, r, err)
		return false
	}
	return true
}

// ParsePathInt64 extracts a positive int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apperr.BadRequest(apperr.CodeInvalidParam, fmt.Sprintf("Missing path parameter: %s", key))
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apperr.BadRequest(apperr.CodeInvalidParam, fmt.Sprintf("Invalid %s: %s", key, str))
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes the
// failure envelope on error
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteError(w, r, err)
		return 0, false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.BadRequest(apperr.CodeInvalidParam, fmt.Sprintf("Invalid integer for query param %s: %s", key, str))
	}
	return val, nil
}

// ParseQueryInt64 extracts an optional int64 query parameter
func ParseQueryInt64(r *http.Request, key string) (*int64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidParam, fmt.Sprintf("Invalid integer for query param %s: %s", key, str))
	}
	return &val, nil
}

// ParseCSV splits a comma separated query value, dropping blanks
func ParseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RequireNonEmpty returns INVALID_INPUT when value is blank
func RequireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.BadRequest(apperr.CodeInvalidInput, fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// RequirePositive returns INVALID_INPUT when value is not a valid id
func RequirePositive(value int64, fieldName string) error {
	if value <= 0 {
		return apperr.BadRequest(apperr.CodeInvalidInput, fmt.Sprintf("%s must be a positive integer", fieldName))
	}
	return nil
}

// Validate returns the first non-nil error
func Validate(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
