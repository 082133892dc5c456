package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/prompting-recipe/apiclient"
)

// DefaultMinPasswordLength is the shortest password the registration form
// accepts.
const DefaultMinPasswordLength = 6

// ValidationError is a client-side form check that failed. It is reported
// next to the form and never reaches the network or the session's error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RegistrationForm is what the registration view collects.
type RegistrationForm struct {
	Name            string
	Email           string
	LoginID         string
	Password        string
	ConfirmPassword string
}

// Request converts the form into the registration payload.
func (f RegistrationForm) Request() apiclient.RegisterRequest {
	return apiclient.RegisterRequest{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		LoginID:  strings.TrimSpace(f.LoginID),
		Password: f.Password,
	}
}

// Validator holds the form rules.
type Validator struct {
	minPasswordLength int
}

// NewValidator creates a Validator. A non-positive length uses the default.
func NewValidator(minPasswordLength int) *Validator {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &Validator{minPasswordLength: minPasswordLength}
}

// ValidateLogin checks that both credentials were entered.
func (v *Validator) ValidateLogin(req apiclient.LoginRequest) error {
	if strings.TrimSpace(req.LoginID) == "" {
		return &ValidationError{Field: "loginId", Message: "login id is required"}
	}
	if req.Password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}

// ValidateRegistration checks required fields, the email address and the
// password rules.
func (v *Validator) ValidateRegistration(f RegistrationForm) error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(f.LoginID) == "" {
		return &ValidationError{Field: "loginId", Message: "login id is required"}
	}
	if err := v.ValidateEmail(f.Email); err != nil {
		return err
	}
	if err := v.ValidatePassword(f.Password); err != nil {
		return err
	}
	if f.Password != f.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: "passwords do not match"}
	}
	return nil
}

// MinPasswordLength is the shortest password ValidatePassword accepts.
func (v *Validator) MinPasswordLength() int {
	return v.minPasswordLength
}

// ValidatePassword checks the password length in characters.
func (v *Validator) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < v.minPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", v.minPasswordLength),
		}
	}
	return nil
}

// ValidateEmail accepts a bare address such as chef@example.com.
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return &ValidationError{Field: "email", Message: "email address is not valid"}
	}
	return nil
}

// ValidateVerificationCode checks that a code was entered.
func (v *Validator) ValidateVerificationCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Field: "code", Message: "verification code is required"}
	}
	return nil
}
