package micropub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Wire error codes
const (
	CodeInvalidRequest    = "invalid_request"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeInsufficientScope = "insufficient_scope"
)

// Error is a protocol failure that maps directly onto a Micropub JSON
// error response. Every failure in this server is one of these; there
// is no internal error category that isn't reported to the client.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Status      int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteResponse writes the error as a JSON response body.
func (e *Error) WriteResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(e)
}

func InvalidRequest(description string) *Error {
	return &Error{Code: CodeInvalidRequest, Description: description, Status: http.StatusBadRequest}
}

func Unauthorized(description string) *Error {
	return &Error{Code: CodeUnauthorized, Description: description, Status: http.StatusUnauthorized}
}

func Forbidden(description string) *Error {
	return &Error{Code: CodeForbidden, Description: description, Status: http.StatusForbidden}
}

func InsufficientScope(action string) *Error {
	return &Error{
		Code:        CodeInsufficientScope,
		Description: fmt.Sprintf("the access token does not grant the %s scope", action),
		Scope:       action,
		Status:      http.StatusForbidden,
	}
}

// AsError coerces any error into a protocol error, defaulting to a
// generic invalid_request.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return InvalidRequest(err.Error())
}
