package auth

import "errors"

var (
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
	ErrStaleRefresh        = errors.New("refresh result belongs to an ended session")
	ErrRestoreFailed       = errors.New("could not restore the saved session")
)

// Messages shown to the user when the session ends without them asking.
const (
	MsgSessionExpired = "Your session has expired. Please sign in again."
	MsgRestoreFailed  = "We couldn't confirm your saved session. Please sign in again."
)
