package server

import (
	"net/http"

	"github.com/jrsteele09/prompting-recipe/guard"
)

// RequireAuth is middleware for views that need a signed-in user. Unsettled
// sessions get the loading view; everyone else is sent to /login.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return guard.Middleware(s.auth.Sessions(), guard.RequireAuth, s.LoadingHandler())
}

// PublicOnly is middleware for the login and register views. Signed-in users
// are sent home.
func (s *Server) PublicOnly() func(http.HandlerFunc) http.HandlerFunc {
	return guard.Middleware(s.auth.Sessions(), guard.PublicOnly, s.LoadingHandler())
}

// LoadingHandler renders the placeholder shown while the session is being
// restored or refreshed. The page reloads itself until the guard settles.
func (s *Server) LoadingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "session is loading", http.StatusServiceUnavailable)
			return
		}
		s.render(w, r, http.StatusOK, "loading.html", s.page(r))
	}
}
