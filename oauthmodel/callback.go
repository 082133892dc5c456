package oauthmodel

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/prompting-recipe/users"
)

// Callback query parameters set by the API when it redirects back after a
// social sign-in.
const (
	ParamAccessToken  = "access_token"
	ParamRefreshToken = "refresh_token"
	ParamUser         = "user"
	ParamError        = "error"
)

// Callback is a successfully parsed OAuth redirect.
type Callback struct {
	AccessToken  string
	RefreshToken string
	User         *users.Profile
}

// ParseCallback validates the redirect query. access_token, refresh_token and
// a JSON user must all be present; otherwise a *CallbackError says why. The
// error parameter is only the reason when tokens are missing.
func ParseCallback(query url.Values) (*Callback, error) {
	access := strings.TrimSpace(query.Get(ParamAccessToken))
	refresh := strings.TrimSpace(query.Get(ParamRefreshToken))
	rawUser := strings.TrimSpace(query.Get(ParamUser))
	if access == "" || refresh == "" || rawUser == "" {
		if providerErr := strings.TrimSpace(query.Get(ParamError)); providerErr != "" {
			return nil, &CallbackError{Reason: providerErr, Err: ErrProvider}
		}
		return nil, &CallbackError{Reason: ReasonMissingTokens, Err: ErrMissingTokens}
	}

	user, err := parseUser(rawUser)
	if err != nil {
		return nil, &CallbackError{Reason: ReasonInvalidUser, Err: fmt.Errorf("%w: %v", ErrInvalidUser, err)}
	}

	return &Callback{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// ParseCallbackURL accepts a full callback URL, a path with a query, or a bare
// query string with or without the leading "?".
func ParseCallbackURL(raw string) (*Callback, error) {
	rawQuery := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		rawQuery = raw[i+1:]
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, &CallbackError{Reason: ReasonMissingTokens, Err: fmt.Errorf("%w: %v", ErrMissingTokens, err)}
	}
	return ParseCallback(query)
}

// The API URL-encodes the user JSON inside an already encoded query, so after
// the query is decoded the value may still be escaped once more.
func parseUser(raw string) (*users.Profile, error) {
	user, err := users.Parse([]byte(raw))
	if err == nil {
		return user, nil
	}
	unescaped, unescapeErr := url.QueryUnescape(raw)
	if unescapeErr != nil || unescaped == raw {
		return nil, err
	}
	return users.Parse([]byte(unescaped))
}

// FailureRedirect is the login-view location for a failed callback.
func FailureRedirect(loginPath, reason string) string {
	return loginPath + "?" + url.Values{ParamError: {reason}}.Encode()
}
