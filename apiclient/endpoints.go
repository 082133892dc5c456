package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/prompting-recipe/users"
)

// API paths.
const (
	PathLogin             = "/auth/login"
	PathRegister          = "/auth/register"
	PathRefresh           = "/auth/refresh"
	PathLogout            = "/auth/logout"
	PathProfile           = "/auth/profile"
	PathSendVerification  = "/auth/email/send-verification"
	PathCheckVerification = "/auth/email/check-verification"
	PathRoot              = "/"
)

// Login exchanges local credentials for a token pair and the user profile.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Request(ctx, http.MethodPost, PathLogin, req, &resp, RequestOptions{}); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &resp, nil
}

// Register creates a local account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.Request(ctx, http.MethodPost, PathRegister, req, &resp, RequestOptions{}); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &resp, nil
}

// Refresh exchanges a refresh token, sent as the bearer, for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, &AuthError{Message: "no refresh token"}
	}
	var resp RefreshResponse
	if err := c.Request(ctx, http.MethodPost, PathRefresh, nil, &resp, RequestOptions{Bearer: refreshToken}); err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	return &resp, nil
}

// Logout asks the server to invalidate refreshToken. It is sent with the
// given access token and is never retried, since the session is ending.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := c.Request(ctx, http.MethodPost, PathLogout, LogoutRequest{RefreshToken: refreshToken}, nil, RequestOptions{Bearer: accessToken}); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// Profile fetches the signed-in user's profile through the bound session.
func (c *Client) Profile(ctx context.Context) (*users.Profile, error) {
	var p users.Profile
	if err := c.Request(ctx, http.MethodGet, PathProfile, nil, &p, RequestOptions{Auth: true}); err != nil {
		return nil, fmt.Errorf("client.Profile: %w", err)
	}
	return &p, nil
}

// SendVerificationEmail asks the server to mail a verification code.
func (c *Client) SendVerificationEmail(ctx context.Context, email string) (*VerificationResponse, error) {
	var resp VerificationResponse
	if err := c.Request(ctx, http.MethodPost, PathSendVerification, EmailRequest{Email: email}, &resp, RequestOptions{}); err != nil {
		return nil, fmt.Errorf("client.SendVerificationEmail: %w", err)
	}
	return &resp, nil
}

// CheckVerificationCode submits the code the user received.
func (c *Client) CheckVerificationCode(ctx context.Context, email, code string) (*VerificationResponse, error) {
	var resp VerificationResponse
	req := VerificationCheckRequest{Email: email, Code: code}
	if err := c.Request(ctx, http.MethodPost, PathCheckVerification, req, &resp, RequestOptions{}); err != nil {
		return nil, fmt.Errorf("client.CheckVerificationCode: %w", err)
	}
	return &resp, nil
}

// OAuthLoginURL is where the browser goes to start a social sign-in.
func (c *Client) OAuthLoginURL(provider users.ProviderType) string {
	return c.baseURL + "/auth/" + url.PathEscape(string(provider))
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Request(ctx, http.MethodGet, PathRoot, nil, nil, RequestOptions{}); err != nil {
		return fmt.Errorf("client.Ping: %w", err)
	}
	return nil
}
