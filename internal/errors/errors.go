package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session manager
var (
	// Session errors
	ErrNoSession        = errors.New("no session")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionEnded     = errors.New("session ended while request was in flight")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Token errors
	ErrMissingAccessToken  = errors.New("missing access token")
	ErrMissingRefreshToken = errors.New("missing refresh token")

	// Storage errors
	ErrCorruptStorage = errors.New("corrupt session storage")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
