package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/jrsteele09/prompting-recipe/tokenstore"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type tokenPair struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken,omitempty"`
}

// fakeAPI is an in-memory stand-in for the auth API.
type fakeAPI struct {
	mu          sync.Mutex
	validAccess map[string]bool
	refreshes   map[string]tokenPair // refresh token -> pair it is exchanged for
	profile     map[string]any
	profileCode int
	logoutCode  int
	dropRefresh bool
	// rejectRefreshed hands out new tokens that the API then refuses.
	rejectRefreshed bool

	refreshGate    chan struct{}
	refreshStarted chan struct{}

	refreshCalls atomic.Int32
	rejected     atomic.Int32
	logoutCalls  atomic.Int32
	profileCalls atomic.Int32
	logoutBody   atomic.Value
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		validAccess: map[string]bool{"A1": true},
		refreshes:   map[string]tokenPair{"R1": {Access: "A2", Refresh: "R2"}},
		profile:     map[string]any{"id": 1, "name": "Chef"},
	}
}

func (f *fakeAPI) invalidate(access string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.validAccess, access)
}

func (f *fakeAPI) setRefresh(refresh string, pair *tokenPair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pair == nil {
		delete(f.refreshes, refresh)
		return
	}
	f.refreshes[refresh] = *pair
}

func (f *fakeAPI) gateRefresh() {
	f.refreshGate = make(chan struct{})
	f.refreshStarted = make(chan struct{}, 16)
}

func (f *fakeAPI) authorised(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validAccess[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		var body apiclient.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LoginID != "chef1" || body.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  "A1",
			"refreshToken": "R1",
			"user":         map[string]any{"id": 1, "name": "Chef"},
		})

	case "POST /auth/register":
		var body apiclient.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LoginID == "taken" {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "loginId already exists"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": "registered"})

	case "POST /auth/refresh":
		f.refreshCalls.Add(1)
		if f.refreshStarted != nil {
			f.refreshStarted <- struct{}{}
			<-f.refreshGate
		}
		if f.dropRefresh {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		f.mu.Lock()
		pair, ok := f.refreshes[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if ok && !f.rejectRefreshed {
			f.validAccess[pair.Access] = true
		}
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, pair)

	case "POST /auth/logout":
		f.logoutCalls.Add(1)
		var body apiclient.LogoutRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.logoutBody.Store(r.Header.Get("Authorization") + " " + body.RefreshToken)
		if f.logoutCode != 0 {
			writeJSON(w, f.logoutCode, map[string]string{"message": "logout failed"})
			return
		}
		w.WriteHeader(http.StatusCreated)

	case "GET /auth/profile":
		f.profileCalls.Add(1)
		if !f.authorised(r) {
			f.rejected.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		f.mu.Lock()
		code, profile := f.profileCode, f.profile
		f.mu.Unlock()
		if code != 0 {
			writeJSON(w, code, map[string]string{"message": "profile unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, profile)

	case "GET /recipes":
		if !f.authorised(r) {
			f.rejected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipes": []string{"bibimbap"}})

	case "POST /auth/email/send-verification":
		writeJSON(w, http.StatusCreated, map[string]any{"success": true})

	case "POST /auth/email/check-verification":
		var body apiclient.VerificationCheckRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"verified": body.Code == "123456"})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type harness struct {
	api     *fakeAPI
	client  *apiclient.Client
	backend *tokenstore.MemoryBackend
	store   *tokenstore.Store
	ctrl    *auth.Controller
}

func newHarness(t *testing.T, opts ...auth.ControllerOption) *harness {
	t.Helper()
	return newHarnessWith(t, newFakeAPI(), tokenstore.NewMemoryBackend(), opts...)
}

func newHarnessWith(t *testing.T, api *fakeAPI, backend *tokenstore.MemoryBackend, opts ...auth.ControllerOption) *harness {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)

	store := tokenstore.New(backend)
	ctrl, err := auth.NewController(auth.Deps{API: client, Store: store}, opts...)
	require.NoError(t, err)

	return &harness{api: api, client: client, backend: backend, store: store, ctrl: ctrl}
}

func (h *harness) stored(t *testing.T) map[string]string {
	t.Helper()
	items, err := h.backend.GetItems(t.Context(), tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUser)
	require.NoError(t, err)
	return items
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Login(t.Context(), apiclient.LoginRequest{LoginID: "chef1", Password: "secret1"}))
}
