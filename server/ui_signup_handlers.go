package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
)

// RegisterPageHandler renders the sign-up form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		data := s.page(r)
		data.Error = q.Get("error")
		data.Name = q.Get("name")
		data.Email = q.Get("email")
		data.LoginID = q.Get("loginId")

		s.render(w, r, http.StatusOK, "register.html", data)
	}
}

// RegisterSubmissionHandler creates the account and sends the user to the
// login page. Registration never signs in on its own.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		form := auth.RegistrationForm{
			Name:            r.FormValue("name"),
			Email:           r.FormValue("email"),
			LoginID:         r.FormValue("loginId"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirmPassword"),
		}
		keep := url.Values{
			"name":    {form.Name},
			"email":   {form.Email},
			"loginId": {form.LoginID},
		}

		if _, err := s.auth.Register(r.Context(), form); err != nil {
			var vErr *auth.ValidationError
			if errors.As(err, &vErr) {
				redirectWithError(w, r, RouteRegister, vErr.Message, keep)
				return
			}
			redirectWithError(w, r, RouteRegister, apiclient.UserMessage(err), keep)
			return
		}

		q := url.Values{"registered": {"1"}, "loginId": {form.LoginID}}
		redirectSuccess(w, r, RouteLogin+"?"+q.Encode())
	}
}

// ValidatePasswordHandler checks password length for the sign-up form as the
// user types. It answers with an HTML fragment and an HX-Trigger event.
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		password := r.FormValue("password")

		w.Header().Set("Content-Type", contentTypeHTML)
		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := s.auth.Validator().ValidatePassword(password); err != nil {
			var vErr *auth.ValidationError
			msg := err.Error()
			if errors.As(err, &vErr) {
				msg = vErr.Message
			}
			w.Header().Set("HX-Trigger", `{"passwordInvalid": ""}`)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<span class="invalid">%s</span>`, html.EscapeString(msg))
			return
		}

		w.Header().Set("HX-Trigger", `{"passwordValid": ""}`)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<span class="valid">OK</span>`)
	}
}
