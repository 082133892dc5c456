package apiclient

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/prompting-recipe/users"
)

// Validator is implemented by response schemas that check themselves after
// decoding. A failure is reported to the caller as a *ParseError.
type Validator interface {
	Validate() error
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// LoginResponse is the success payload of POST /auth/login.
type LoginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.Profile `json:"user"`
}

func (r *LoginResponse) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return fmt.Errorf("accessToken is missing")
	}
	if strings.TrimSpace(r.RefreshToken) == "" {
		return fmt.Errorf("refreshToken is missing")
	}
	if err := r.User.Validate(); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	return nil
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// RegisterResponse is the registration confirmation. The server decides its
// content, so every field is optional.
type RegisterResponse struct {
	Message string         `json:"message,omitempty"`
	User    *users.Profile `json:"user,omitempty"`
}

// RefreshResponse is the success payload of POST /auth/refresh. The server may
// omit refreshToken when it does not rotate it.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (r *RefreshResponse) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return fmt.Errorf("accessToken is missing")
	}
	return nil
}

// LogoutRequest is the body of POST /auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest is the body of POST /auth/email/send-verification.
type EmailRequest struct {
	Email string `json:"email"`
}

// VerificationCheckRequest is the body of POST /auth/email/check-verification.
type VerificationCheckRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerificationResponse is returned by both email verification endpoints.
type VerificationResponse struct {
	Success  *bool  `json:"success,omitempty"`
	Verified *bool  `json:"verified,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Confirmed reports whether the server explicitly acknowledged the request.
// An empty 2xx body counts as acknowledged.
func (r *VerificationResponse) Confirmed() bool {
	switch {
	case r.Verified != nil:
		return *r.Verified
	case r.Success != nil:
		return *r.Success
	default:
		return true
	}
}
