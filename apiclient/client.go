package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 1 << 20
	headerRequest  = "X-Request-ID"
)

// RequestOptions controls how a single call is sent.
type RequestOptions struct {
	// Auth sends the call with the session's access token and enables the
	// refresh-and-retry-once behaviour on 401.
	Auth bool
	// Bearer sends a specific token without retry. Used by refresh and logout.
	Bearer string
	// Headers override the defaults.
	Headers http.Header
}

// Client talks to the Prompting Recipe API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	leeway     time.Duration
	base       http.RoundTripper
	nowTime    func() time.Time
	plain      *http.Client
	authed     *http.Client
	creds      atomic.Pointer[credentialsHolder]
	newRequest func() string
}

type credentialsHolder struct {
	Credentials
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPTransport sets the round tripper both clients send through.
func WithHTTPTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTimeout sets the per-request timeout, including any refresh and retry.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRefreshLeeway refreshes the access token before sending when its JWT
// exp claim is within d of now. Zero disables proactive refresh.
func WithRefreshLeeway(d time.Duration) ClientOption {
	return func(c *Client) {
		c.leeway = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithRequestIDs sets the generator for X-Request-ID values.
func WithRequestIDs(gen func() string) ClientOption {
	return func(c *Client) {
		c.newRequest = gen
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("[New] baseURL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[New] baseURL %q is not an absolute URL", baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		timeout:    defaultTimeout,
		base:       http.DefaultTransport,
		nowTime:    time.Now,
		newRequest: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.plain = &http.Client{Transport: c.base, Timeout: c.timeout}
	c.authed = &http.Client{
		Transport: &authTransport{
			base:    c.base,
			creds:   c.credentials,
			leeway:  c.leeway,
			nowTime: c.nowTime,
		},
		Timeout: c.timeout,
	}
	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UseCredentials binds the session that authenticated calls draw tokens from.
// Passing nil unbinds it.
func (c *Client) UseCredentials(creds Credentials) {
	if creds == nil {
		c.creds.Store(nil)
		return
	}
	c.creds.Store(&credentialsHolder{creds})
}

func (c *Client) credentials() Credentials {
	h := c.creds.Load()
	if h == nil {
		return nil
	}
	return h.Credentials
}

// Request sends one call. body is encoded as JSON when non-nil and the
// response is decoded into out when out is non-nil. Schemas implementing
// Validator are checked after decoding.
func (c *Client) Request(ctx context.Context, method, path string, body, out any, opts RequestOptions) error {
	op := method + " " + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequest, c.newRequest())
	for k, vs := range opts.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	httpClient := c.plain
	switch {
	case opts.Auth:
		httpClient = c.authed
	case opts.Bearer != "":
		req.Header.Set("Authorization", "Bearer "+opts.Bearer)
	}

	log.Debug().Str("op", op).Str("request_id", req.Header.Get(headerRequest)).Bool("auth", opts.Auth).Msg("api request")

	resp, err := httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	return decode(op, resp.Body, out)
}

func classifyTransportErr(op string, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	var credErr *credentialsError
	if errors.As(err, &credErr) {
		var netErr *NetworkError
		if errors.As(credErr.Err, &netErr) {
			return netErr
		}
		return &AuthError{Status: http.StatusUnauthorized, Err: credErr.Err}
	}
	return &NetworkError{Op: op, Err: err}
}

func responseError(resp *http.Response) error {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := ""
	if readErr == nil {
		msg = errorMessage(raw)
	}
	if msg == "" {
		msg = statusMessage(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Status: resp.StatusCode, Message: msg}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// errorMessage picks the server's message from an error body: "message" (a
// string or a list of strings), then "error", then the raw text.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return string(raw)
	}
	if msg := flattenMessage(payload.Message); msg != "" {
		return msg
	}
	return payload.Error
}

func flattenMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return ""
}

func decode(op string, body io.Reader, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &ParseError{Op: op, Err: err}
		}
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &ParseError{Op: op, Err: err}
		}
	}
	return nil
}
