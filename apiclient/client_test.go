package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/users"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc, opts ...apiclient.ClientOption) (*apiclient.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_Validation(t *testing.T) {
	_, err := apiclient.New("")
	require.ErrorContains(t, err, "baseURL is required")

	_, err = apiclient.New("localhost:3000")
	require.Error(t, err)

	c, err := apiclient.New("http://localhost:3000/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", c.BaseURL())
}

func TestLogin(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, apiclient.PathLogin, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		require.Empty(t, r.Header.Get("Authorization"))

		var body apiclient.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, apiclient.LoginRequest{LoginID: "chef1", Password: "secret1"}, body)

		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  "A1",
			"refreshToken": "R1",
			"user":         map[string]any{"id": 1, "name": "Chef"},
		})
	}, apiclient.WithRequestIDs(func() string { return "req-1" }))

	resp, err := c.Login(context.Background(), apiclient.LoginRequest{LoginID: "chef1", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "A1", resp.AccessToken)
	require.Equal(t, "R1", resp.RefreshToken)
	require.Equal(t, users.ID("1"), resp.User.ID)
}

func TestLogin_BadCredentials(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials", "statusCode": 401})
	})

	_, err := c.Login(context.Background(), apiclient.LoginRequest{LoginID: "chef1", Password: "nope"})
	var authErr *apiclient.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "Invalid credentials", authErr.Message)
	require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
	require.True(t, apiclient.IsRejected(err))
	require.Equal(t, "Invalid credentials", apiclient.UserMessage(err))
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message string", http.StatusBadRequest, `{"message":"loginId already taken"}`, "loginId already taken"},
		{"message list", http.StatusBadRequest, `{"message":["email must be an email","password too short"],"error":"Bad Request"}`, "email must be an email, password too short"},
		{"error field", http.StatusConflict, `{"error":"duplicate"}`, "duplicate"},
		{"plain text", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"empty body", http.StatusInternalServerError, ``, "request failed: 500 Internal Server Error"},
		{"json without message", http.StatusNotFound, `{"statusCode":404}`, "request failed: 404 Not Found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := c.Register(context.Background(), apiclient.RegisterRequest{Name: "n"})
			var apiErr *apiclient.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.want, apiErr.Message)
			require.True(t, apiclient.IsStatus(err, tc.status))
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"accessToken":`)
		})
		_, err := c.Login(context.Background(), apiclient.LoginRequest{})
		var parseErr *apiclient.ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"accessToken": "A1", "user": map[string]any{"id": 1}})
		})
		_, err := c.Login(context.Background(), apiclient.LoginRequest{})
		var parseErr *apiclient.ParseError
		require.ErrorAs(t, err, &parseErr)
		require.ErrorContains(t, err, "refreshToken is missing")
	})

	t.Run("empty refresh body", func(t *testing.T) {
		c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		_, err := c.Refresh(context.Background(), "R1")
		var parseErr *apiclient.ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := apiclient.New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	err = c.Ping(context.Background())
	var netErr *apiclient.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Contains(t, apiclient.UserMessage(err), "Could not reach the server")
}

func TestRefresh_SendsRefreshTokenAsBearer(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, apiclient.PathRefresh, r.URL.Path)
		require.Equal(t, "Bearer R1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": "A2"})
	})

	resp, err := c.Refresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "A2", resp.AccessToken)
	require.Empty(t, resp.RefreshToken)

	_, err = c.Refresh(context.Background(), "")
	var authErr *apiclient.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestLogout(t *testing.T) {
	calls := 0
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		var body apiclient.LogoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "R1", body.RefreshToken)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.Logout(context.Background(), "A1", "R1")
	require.Error(t, err)
	require.Equal(t, 1, calls, "logout is never retried")
}

func TestVerificationEndpoints(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiclient.PathSendVerification:
			var body apiclient.EmailRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "chef@example.com", body.Email)
			w.WriteHeader(http.StatusCreated)
		case apiclient.PathCheckVerification:
			var body apiclient.VerificationCheckRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]any{"verified": body.Code == "123456"})
		default:
			http.NotFound(w, r)
		}
	})

	sent, err := c.SendVerificationEmail(context.Background(), "chef@example.com")
	require.NoError(t, err)
	require.True(t, sent.Confirmed())

	ok, err := c.CheckVerificationCode(context.Background(), "chef@example.com", "123456")
	require.NoError(t, err)
	require.True(t, ok.Confirmed())

	bad, err := c.CheckVerificationCode(context.Background(), "chef@example.com", "000000")
	require.NoError(t, err)
	require.False(t, bad.Confirmed())
}

func TestPing_AcceptsNonJSONBody(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		_, _ = io.WriteString(w, "Hello World!")
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestOAuthLoginURL(t *testing.T) {
	c, err := apiclient.New("https://api.example.com/")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/auth/google", c.OAuthLoginURL(users.ProviderGoogle))
	require.Equal(t, "https://api.example.com/auth/kakao", c.OAuthLoginURL(users.ProviderKakao))
}
