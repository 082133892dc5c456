package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
)

// passwordInput is where passwords are read from when no flag is given.
var passwordInput = bufio.NewReader(os.Stdin)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	loginID := fs.String("id", "", "login id")
	password := fs.String("password", "", "password (read from stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		pw, err := readPassword(a.out, "Password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	if err := a.ctrl.Login(ctx, apiclient.LoginRequest{LoginID: *loginID, Password: *password}); err != nil {
		return explain(err)
	}
	printSignedIn(a.out, a.ctrl.Snapshot().User)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	loginID := fs.String("id", "", "login id")
	password := fs.String("password", "", "password (read from stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form := auth.RegistrationForm{Name: *name, Email: *email, LoginID: *loginID, Password: *password}
	if form.Password == "" {
		pw, err := readPassword(a.out, "Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword(a.out, "Confirm password: ")
		if err != nil {
			return err
		}
		form.Password, form.ConfirmPassword = pw, confirm
	} else {
		form.ConfirmPassword = form.Password
	}

	resp, err := a.ctrl.Register(ctx, form)
	if err != nil {
		return explain(err)
	}
	msg := "Account created. Sign in with: recipe login -id " + form.LoginID
	if resp.Message != "" {
		msg = resp.Message + ". " + msg
	}
	printOK(a.out, msg)
	return nil
}

func runWhoAmI(ctx context.Context, a *app, _ []string) error {
	if err := a.ctrl.RestoreOnStartup(ctx); err != nil {
		return explain(err)
	}
	if !a.ctrl.Snapshot().IsAuthenticated() {
		return errors.New("not signed in")
	}
	profile, err := a.ctrl.RefetchProfile(ctx)
	if err != nil {
		return explain(err)
	}
	printProfile(a.out, profile)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	// A restored session is ended on the server too. A failed restore has
	// already cleared it.
	if err := a.ctrl.RestoreOnStartup(ctx); err != nil && !errors.Is(err, auth.ErrRestoreFailed) {
		return explain(err)
	}
	if err := a.ctrl.Logout(ctx); err != nil {
		return explain(err)
	}
	printOK(a.out, "Signed out.")
	return nil
}

func runVerifyEmail(ctx context.Context, a *app, args []string) error {
	switch len(args) {
	case 1:
		if err := a.ctrl.SendVerificationEmail(ctx, args[0]); err != nil {
			return explain(err)
		}
		printOK(a.out, "Verification code sent to "+args[0]+". Run: recipe verify-email "+args[0]+" <code>")
		return nil
	case 2:
		ok, err := a.ctrl.CheckVerificationCode(ctx, args[0], args[1])
		if err != nil {
			return explain(err)
		}
		if !ok {
			return errors.New(a.ctrl.Snapshot().Error)
		}
		printOK(a.out, "Email verified.")
		return nil
	default:
		return errors.New("usage: recipe verify-email <email> [code]")
	}
}

func runPing(ctx context.Context, a *app, _ []string) error {
	if err := a.client.Ping(ctx); err != nil {
		return explain(err)
	}
	printOK(a.out, "API reachable at "+a.client.BaseURL())
	return nil
}

// explain swaps transport-level errors for the message a user should see.
// Form problems are already readable.
func explain(err error) error {
	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errors.New(vErr.Message)
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		return errors.New("not signed in")
	default:
		return errors.New(apiclient.UserMessage(err))
	}
}

func readPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := passwordInput.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
