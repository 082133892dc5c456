package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/jrsteele09/prompting-recipe/sessions"
)

// SessionHandler returns the current session snapshot as JSON. The refresh
// token is never part of it.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.auth.Snapshot())
	}
}

type healthResponse struct {
	Status  string         `json:"status"`
	Session sessions.State `json:"session"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Session: s.auth.Snapshot().State})
	}
}

type verificationResult struct {
	Success  bool   `json:"success"`
	Verified *bool  `json:"verified,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SendVerificationHandler mails a verification code to the submitted email.
func (s *Server) SendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid form data", "")
			return
		}
		if err := s.auth.SendVerificationEmail(r.Context(), r.FormValue("email")); err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, verificationResult{Success: true})
	}
}

// CheckVerificationHandler checks the submitted code. A wrong code is a
// normal answer, not an error.
func (s *Server) CheckVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid form data", "")
			return
		}
		ok, err := s.auth.CheckVerificationCode(r.Context(), r.FormValue("email"), r.FormValue("code"))
		if err != nil {
			writeActionError(w, err)
			return
		}
		result := verificationResult{Success: true, Verified: &ok}
		if !ok {
			result.Message = s.auth.Snapshot().Error
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// writeActionError maps controller errors onto JSON responses: form problems
// are 400s, API rejections keep their status, anything else is a 502.
func writeActionError(w http.ResponseWriter, err error) {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		writeJSONError(w, http.StatusBadRequest, vErr.Message, vErr.Field)
		return
	}

	status := http.StatusBadGateway
	var apiErr *apiclient.APIError
	var authErr *apiclient.AuthError
	switch {
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	}
	writeJSONError(w, status, apiclient.UserMessage(err), "")
}
