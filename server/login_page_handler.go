package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/jrsteele09/prompting-recipe/oauthmodel"
	"github.com/rs/zerolog/log"
)

// ReasonSessionExpired is the login-view reason used after the session ended
// on its own.
const ReasonSessionExpired = "session_expired"

// loginReasons maps ?error= reasons to the text shown on the login page.
// Unknown reasons are shown as they are.
var loginReasons = map[string]string{
	oauthmodel.ReasonMissingTokens: "Sign-in didn't return the required tokens. Please try again.",
	oauthmodel.ReasonInvalidUser:   "We couldn't read your account details. Please try again.",
	ReasonSessionExpired:           auth.MsgSessionExpired,
	auth.ReasonStorage:             "Signed in, but the session couldn't be saved on this device.",
}

func loginMessage(reason string) string {
	if msg, ok := loginReasons[reason]; ok {
		return msg
	}
	return reason
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		data := s.page(r)
		data.LoginID = q.Get("loginId")
		data.Error = loginMessage(q.Get("error"))
		if data.Error == "" {
			data.Error = data.Session.Error
		}
		if q.Get("registered") != "" {
			data.Notice = "Your account was created. Please sign in."
		}

		s.render(w, r, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		req := apiclient.LoginRequest{
			LoginID:  r.FormValue("loginId"),
			Password: r.FormValue("password"),
		}
		keep := url.Values{"loginId": {req.LoginID}}

		if err := s.auth.Login(r.Context(), req); err != nil {
			var vErr *auth.ValidationError
			if errors.As(err, &vErr) {
				redirectWithError(w, r, RouteLogin, vErr.Message, keep)
				return
			}
			redirectWithError(w, r, RouteLogin, apiclient.UserMessage(err), keep)
			return
		}

		redirectSuccess(w, r, RouteHome)
	}
}

// LogoutHandler ends the session and returns to the login page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context()); err != nil {
			log.Err(err).Str("request_id", RequestID(r.Context())).Msg("Logout: failed to clear saved session")
		}
		redirectSuccess(w, r, RouteLogin)
	}
}
