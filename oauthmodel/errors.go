package oauthmodel

import (
	"errors"
	"fmt"
)

// Reasons handed to the login view as ?error=<reason>. A provider-reported
// error is passed through verbatim instead.
const (
	ReasonMissingTokens = "missing_tokens"
	ReasonInvalidUser   = "invalid_user"
)

var (
	ErrMissingTokens = errors.New("callback is missing tokens")
	ErrInvalidUser   = errors.New("callback user is invalid")
	ErrProvider      = errors.New("identity provider reported an error")
)

// CallbackError is a failed OAuth callback with the reason the login view
// should display.
type CallbackError struct {
	Reason string
	Err    error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("oauth callback failed (%s): %v", e.Reason, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the login-view reason for err, or "" if err is not a
// callback failure.
func ReasonOf(err error) string {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Reason
	}
	return ""
}
