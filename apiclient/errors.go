package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
)

// NetworkError means the request could not be sent or its response could not
// be received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError is an authorization failure: bad credentials on an
// unauthenticated call, or a 401 that survived one refresh and retry.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "authorization failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is any other non-2xx response. Message is the server's message
// when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// ParseError means a response body was not valid JSON or did not match the
// endpoint's schema.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == code
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status == code
	}
	return false
}

// IsRejected reports whether the server answered and refused the request, as
// opposed to the request never completing.
func IsRejected(err error) bool {
	var authErr *AuthError
	var apiErr *APIError
	return errors.As(err, &authErr) || errors.As(err, &apiErr)
}

// UserMessage turns err into a line fit for display next to a form.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		authErr  *AuthError
		apiErr   *APIError
		netErr   *NetworkError
		parseErr *ParseError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &authErr):
		if authErr.Message != "" {
			return authErr.Message
		}
		if apperrors.Is(err, apperrors.ErrSessionExpired) {
			return "Your session has expired. Please sign in again."
		}
		return "Authentication failed."
	case errors.As(err, &netErr):
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &parseErr):
		return "The server sent an unexpected response."
	default:
		return err.Error()
	}
}

func statusMessage(status int) string {
	return fmt.Sprintf("request failed: %d %s", status, http.StatusText(status))
}
