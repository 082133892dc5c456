package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/jrsteele09/prompting-recipe/internal/config"
	"github.com/jrsteele09/prompting-recipe/server"
	"github.com/jrsteele09/prompting-recipe/tokenstore"
	"github.com/stretchr/testify/require"
)

// backend stands in for the remote auth API.
type backend struct {
	mu          sync.Mutex
	validAccess map[string]bool
	refreshes   map[string]string // refresh token -> access token it yields
	profileGate chan struct{}
}

func newBackend() *backend {
	return &backend{
		validAccess: map[string]bool{"A1": true},
		refreshes:   map[string]string{"R1": "A2"},
	}
}

func (b *backend) expire(access string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.validAccess, access)
}

func (b *backend) revokeRefresh(refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refreshes, refresh)
}

func (b *backend) bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		var body apiclient.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LoginID != "chef1" || body.Password != "secret1" {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"accessToken":  "A1",
			"refreshToken": "R1",
			"user":         map[string]any{"id": 1, "name": "Chef", "loginId": "chef1"},
		})

	case "POST /auth/register":
		var body apiclient.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LoginID == "taken" {
			reply(w, http.StatusConflict, map[string]any{"message": []string{"loginId already exists"}})
			return
		}
		reply(w, http.StatusCreated, map[string]any{"message": "registered"})

	case "POST /auth/refresh":
		b.mu.Lock()
		access, ok := b.refreshes[b.bearer(r)]
		if ok {
			b.validAccess[access] = true
		}
		b.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"accessToken": access})

	case "POST /auth/logout":
		w.WriteHeader(http.StatusCreated)

	case "GET /auth/profile":
		if b.profileGate != nil {
			<-b.profileGate
		}
		b.mu.Lock()
		ok := b.validAccess[b.bearer(r)]
		b.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"id": 1, "name": "Chef Kim", "loginId": "chef1", "email": "chef@example.com"})

	case "POST /auth/email/send-verification":
		reply(w, http.StatusCreated, map[string]any{"success": true})

	case "POST /auth/email/check-verification":
		var body apiclient.VerificationCheckRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		reply(w, http.StatusOK, map[string]any{"verified": body.Code == "123456"})

	default:
		http.NotFound(w, r)
	}
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	api     *backend
	apiURL  string
	backend *tokenstore.MemoryBackend
	ctrl    *auth.Controller
	srv     *server.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, newBackend(), tokenstore.NewMemoryBackend())
}

func newFixtureWith(t *testing.T, api *backend, mem *tokenstore.MemoryBackend) *fixture {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	cfg, err := config.FromMap(map[string]string{"ENV": "TEST", "APP_NAME": "Recipe Test"})
	require.NoError(t, err)

	client, err := apiclient.New(apiSrv.URL)
	require.NoError(t, err)
	ctrl, err := auth.NewController(auth.Deps{API: client, Store: tokenstore.New(mem)})
	require.NoError(t, err)

	srv, err := server.New(cfg, ctrl)
	require.NoError(t, err)

	return &fixture{api: api, apiURL: apiSrv.URL, backend: mem, ctrl: ctrl, srv: srv}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodGet, target, nil, nil)
}

func (f *fixture) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, target, form, nil)
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	rec := f.post(t, server.RouteAuthLogin, url.Values{"loginId": {"chef1"}, "password": {"secret1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, server.RouteHome, rec.Header().Get("Location"))
}
