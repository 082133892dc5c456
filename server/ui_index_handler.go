package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/rs/zerolog/log"
)

// HomeHandler renders the home page
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "home.html", s.page(r))
	}
}

// ProfileHandler reloads the user through the authenticated client, which
// refreshes the session if the access token has expired.
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := s.auth.RefetchProfile(r.Context())
		if err == nil {
			s.render(w, r, http.StatusOK, "profile.html", s.page(r))
			return
		}

		data := s.page(r)
		if !data.Session.IsAuthenticated() {
			target := RouteLogin
			if data.Session.Error == auth.MsgSessionExpired {
				target += "?" + url.Values{"error": {ReasonSessionExpired}}.Encode()
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("Profile refresh failed, showing cached profile")
		data.Error = apiclient.UserMessage(err)
		s.render(w, r, http.StatusOK, "profile.html", data)
	}
}
