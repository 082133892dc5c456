package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/rs/zerolog/log"
)

// OAuthCallbackHandler completes a social sign-in. The API redirects here with
// the tokens and the user in the query string.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next, err := s.auth.HandleOAuthCallback(r.Context(), r.URL.Query())
		if err != nil {
			log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("OAuth callback failed")
		}
		// The query carries tokens; make sure it does not linger in history.
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

// OAuthProviderHandler starts a social sign-in by sending the browser to the
// API's provider endpoint (GET /auth/{provider}).
func (s *Server) OAuthProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := s.auth.OAuthLoginURL(r.PathValue("provider"))
		if err != nil {
			if errors.Is(err, auth.ErrUnsupportedProvider) {
				http.Error(w, "404 - Unknown sign-in provider", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to start sign-in", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
