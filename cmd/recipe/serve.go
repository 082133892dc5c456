package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/prompting-recipe/internal/browser"
	"github.com/jrsteele09/prompting-recipe/server"
	"github.com/jrsteele09/prompting-recipe/sessions"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 5 * time.Second
	oauthTimeout    = 5 * time.Minute
)

func runServe(ctx context.Context, a *app, _ []string) error {
	displayAppname(a)

	srv, ln, err := a.listen()
	if err != nil {
		return err
	}
	go restoreSession(ctx, a)

	errCh := make(chan error, 1)
	go func() { errCh <- serve(srv, ln) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	return shutdown(srv)
}

// runOAuth serves the views, opens the provider's sign-in page and waits for
// the callback to establish a session.
func runOAuth(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: recipe oauth <provider>")
	}
	target, err := a.ctrl.OAuthLoginURL(args[0])
	if err != nil {
		return err
	}

	signedIn := make(chan sessions.Snapshot, 1)
	unsubscribe := a.ctrl.Sessions().Subscribe(func(s sessions.Snapshot) {
		if s.State == sessions.Authenticated {
			select {
			case signedIn <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	srv, ln, err := a.listen()
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- serve(srv, ln) }()
	defer func() {
		if err := shutdown(srv); err != nil {
			log.Warn().Err(err).Msg("Callback server did not stop cleanly")
		}
	}()

	fmt.Fprintln(a.out, "Opening browser to sign in...")
	if err := browser.Open(target); err != nil {
		fmt.Fprintf(a.out, "Could not open browser. Visit this URL manually:\n  %s\n", target)
	}

	timeout := time.NewTimer(oauthTimeout)
	defer timeout.Stop()

	select {
	case s := <-signedIn:
		printSignedIn(a.out, s.User)
		return nil
	case err := <-errCh:
		return err
	case <-timeout.C:
		return errors.New("timed out waiting for the sign-in callback")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) listen() (*http.Server, net.Listener, error) {
	handler, err := server.New(a.cfg, a.ctrl)
	if err != nil {
		return nil, nil, err
	}
	ln, err := net.Listen("tcp", a.cfg.GetListenAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", a.cfg.GetListenAddr(), err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, ln, nil
}

func serve(srv *http.Server, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

// restoreSession confirms any saved session. Guarded views show the loading
// page until it finishes.
func restoreSession(ctx context.Context, a *app) {
	if err := a.ctrl.RestoreOnStartup(ctx); err != nil {
		log.Warn().Err(err).Msg("Saved session was not restored")
	}
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func displayAppname(a *app) {
	myFigure := figure.NewFigure(a.cfg.GetAppName(), "cybermedium", true)
	fmt.Fprintln(a.out, myFigure.String())
}
