// Package guard decides whether a view may be shown for the current session.
// Guards only read session state; they never change it.
package guard

import (
	"net/http"

	"github.com/jrsteele09/prompting-recipe/sessions"
)

// Routes the guards redirect to.
const (
	HomeRoute  = "/"
	LoginRoute = "/login"
)

// Decision is the outcome of a guard.
type Decision struct {
	Allow    bool
	Redirect string
	// Pending is set while the session is restoring or refreshing. The view
	// should show a loading state and ask again once the state settles.
	Pending bool
}

// RequireAuth allows authenticated sessions and sends everyone else to the
// login view.
func RequireAuth(s sessions.Snapshot) Decision {
	if s.State.Transient() {
		return Decision{Pending: true}
	}
	if s.State == sessions.Authenticated && s.IsAuthenticated() {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginRoute}
}

// PublicOnly allows anyone who is not signed in and sends signed-in users to
// the home view.
func PublicOnly(s sessions.Snapshot) Decision {
	if s.State.Transient() {
		return Decision{Pending: true}
	}
	if s.State == sessions.Authenticated {
		return Decision{Redirect: HomeRoute}
	}
	return Decision{Allow: true}
}

// Func is a guard.
type Func func(sessions.Snapshot) Decision

// Source supplies the current session snapshot.
type Source interface {
	Get() sessions.Snapshot
}

// Middleware applies guard to every request. pending handles requests that
// arrive while the session is unsettled; nil falls back to a 503 with
// Retry-After.
func Middleware(src Source, guard Func, pending http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if pending == nil {
		pending = unavailable
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := guard(src.Get())
			switch {
			case d.Allow:
				next(w, r)
			case d.Pending:
				pending(w, r)
			default:
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			}
		}
	}
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "1")
	http.Error(w, "session is loading", http.StatusServiceUnavailable)
}
