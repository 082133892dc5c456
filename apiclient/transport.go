package apiclient

import (
	"context"
	"io"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
	"github.com/jrsteele09/prompting-recipe/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Credentials is the session an authenticated call draws its token from.
type Credentials interface {
	oauth2.TokenSource

	// Renew exchanges the refresh token for a new access token. stale is the
	// token the caller was rejected with; if the session has already moved
	// past it, the current token is returned without another exchange.
	Renew(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error)

	// Expire ends the session after rejected was refused even though it had
	// just been refreshed. Sessions that have already moved past rejected are
	// left alone.
	Expire(ctx context.Context, rejected *oauth2.Token, cause error)
}

// credentialsError marks a failure to obtain a token, as opposed to a failure
// to reach the API with one.
type credentialsError struct {
	Err error
}

func (e *credentialsError) Error() string {
	return "credentials: " + e.Err.Error()
}

func (e *credentialsError) Unwrap() error {
	return e.Err
}

// authTransport attaches the session's bearer token and, on a 401, refreshes
// once and replays the request with the new token. A failed replay ends the
// session.
type authTransport struct {
	base    http.RoundTripper
	creds   func() Credentials
	leeway  time.Duration
	nowTime func() time.Time
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds := t.creds()
	if creds == nil {
		closeBody(req)
		return nil, &credentialsError{Err: apperrors.ErrNotAuthenticated}
	}
	ctx := req.Context()

	tok, err := creds.Token()
	if err != nil {
		closeBody(req)
		return nil, &credentialsError{Err: err}
	}
	if t.leeway > 0 && token.ExpiresWithin(tok, t.leeway, t.nowTime()) {
		log.Debug().Str("url", req.URL.Path).Msg("access token near expiry, refreshing before send")
		if tok, err = creds.Renew(ctx, tok); err != nil {
			closeBody(req)
			return nil, &credentialsError{Err: err}
		}
	}

	resp, err := t.send(req, tok, false)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	log.Debug().Str("url", req.URL.Path).Msg("access token rejected, refreshing")
	renewed, err := creds.Renew(ctx, tok)
	if err != nil {
		return nil, &credentialsError{Err: err}
	}

	// The retry is the last attempt: any failure ends the session and the
	// caller still sees the server's answer.
	retry, err := t.send(req, renewed, true)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL.Path).Msg("retry after refresh failed, ending session")
		creds.Expire(context.WithoutCancel(ctx), renewed, err)
		return nil, err
	}
	if retry.StatusCode < 200 || retry.StatusCode > 299 {
		log.Warn().Int("status", retry.StatusCode).Str("url", req.URL.Path).Msg("request failed after refresh, ending session")
		cause := apperrors.ErrSessionExpired
		if retry.StatusCode != http.StatusUnauthorized {
			cause = apperrors.Wrapf(apperrors.ErrSessionExpired, "retry answered %d", retry.StatusCode)
		}
		creds.Expire(context.WithoutCancel(ctx), renewed, cause)
	}
	return retry, nil
}

// send clones req so the caller's request is never modified. replay rewinds
// the body for a second attempt.
func (t *authTransport) send(req *http.Request, tok *oauth2.Token, replay bool) (*http.Response, error) {
	out := req.Clone(req.Context())
	if replay && req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, &credentialsError{Err: apperrors.Wrapf(apperrors.ErrUnsupported, "replay %s %s", req.Method, req.URL.Path)}
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	tok.SetAuthHeader(out)
	return t.base.RoundTrip(out)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
