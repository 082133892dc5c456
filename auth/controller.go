package auth

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/guard"
	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
	"github.com/jrsteele09/prompting-recipe/oauthmodel"
	"github.com/jrsteele09/prompting-recipe/sessions"
	"github.com/jrsteele09/prompting-recipe/token"
	"github.com/jrsteele09/prompting-recipe/token/refresh"
	"github.com/jrsteele09/prompting-recipe/tokenstore"
	"github.com/jrsteele09/prompting-recipe/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ReasonStorage is the login-view reason when a callback succeeded but the
// session could not be saved.
const ReasonStorage = "storage_error"

// API is the part of the HTTP client the controller drives.
type API interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (*apiclient.LoginResponse, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.RegisterResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*apiclient.RefreshResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Profile(ctx context.Context) (*users.Profile, error)
	SendVerificationEmail(ctx context.Context, email string) (*apiclient.VerificationResponse, error)
	CheckVerificationCode(ctx context.Context, email, code string) (*apiclient.VerificationResponse, error)
	OAuthLoginURL(provider users.ProviderType) string
	UseCredentials(creds apiclient.Credentials)
}

// TokenStore persists the session between runs.
type TokenStore interface {
	Save(ctx context.Context, r tokenstore.Record) error
	Load(ctx context.Context) (tokenstore.Record, error)
	Clear(ctx context.Context) error
}

// Deps holds the controller's collaborators.
type Deps struct {
	API      API             // Remote auth API
	Store    TokenStore      // Durable session storage
	Sessions *sessions.Store // Observable state; a new store is created when nil
}

// Controller is the only writer of session state. Views read it through
// Sessions() and change it only by calling the operations below.
type Controller struct {
	api       API
	store     TokenStore
	sessions  *sessions.Store
	refresher *refresh.Coordinator
	validator *Validator

	minPasswordLength int
	providers         []users.ProviderType

	mu           sync.Mutex // orders storage writes with the commits that publish them
	refreshToken string

	restoreOnce sync.Once
	restoreErr  error
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithMinPasswordLength sets the registration password rule.
func WithMinPasswordLength(n int) ControllerOption {
	return func(c *Controller) {
		c.minPasswordLength = n
	}
}

// WithProviders restricts social sign-in to the named providers.
func WithProviders(providers ...string) ControllerOption {
	return func(c *Controller) {
		c.providers = c.providers[:0]
		for _, p := range providers {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && !slices.Contains(c.providers, users.ProviderType(p)) {
				c.providers = append(c.providers, users.ProviderType(p))
			}
		}
	}
}

// NewController creates the controller and binds it as the API client's
// credentials, so authenticated calls draw their token from this session.
func NewController(deps Deps, options ...ControllerOption) (*Controller, error) {
	if deps.API == nil {
		return nil, errors.New("[NewController] API is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewController] Store is required")
	}
	if deps.Sessions == nil {
		deps.Sessions = sessions.NewStore()
	}

	c := &Controller{
		api:               deps.API,
		store:             deps.Store,
		sessions:          deps.Sessions,
		refresher:         refresh.NewCoordinator(),
		minPasswordLength: DefaultMinPasswordLength,
		providers:         []users.ProviderType{users.ProviderGoogle, users.ProviderKakao},
	}
	for _, opt := range options {
		opt(c)
	}
	c.validator = NewValidator(c.minPasswordLength)

	c.api.UseCredentials(c)
	return c, nil
}

// Sessions returns the observable session store.
func (c *Controller) Sessions() *sessions.Store {
	return c.sessions
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() sessions.Snapshot {
	return c.sessions.Get()
}

// Validator returns the form rules the controller applies.
func (c *Controller) Validator() *Validator {
	return c.validator
}

// Providers lists the social sign-in providers that are enabled.
func (c *Controller) Providers() []users.ProviderType {
	return slices.Clone(c.providers)
}

// Login signs in with local credentials. On failure the session's error is
// set and any existing session is left as it was.
func (c *Controller) Login(ctx context.Context, req apiclient.LoginRequest) error {
	if err := c.validator.ValidateLogin(req); err != nil {
		return err
	}

	epoch := c.sessions.Get().Epoch
	resp, err := c.api.Login(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("login_id", req.LoginID).Msg("Login failed")
		c.fail(epoch, apiclient.UserMessage(err))
		return errors.Wrap(err, "[Login]")
	}

	if err := c.begin(ctx, tokenstore.Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}); err != nil {
		return err
	}
	log.Info().Str("user_id", string(resp.User.ID)).Msg("Signed in")
	return nil
}

// Register creates an account. It does not sign in; call Login afterwards.
// Form problems are returned as *ValidationError without contacting the
// server.
func (c *Controller) Register(ctx context.Context, form RegistrationForm) (*apiclient.RegisterResponse, error) {
	if err := c.validator.ValidateRegistration(form); err != nil {
		return nil, err
	}

	epoch := c.sessions.Get().Epoch
	resp, err := c.api.Register(ctx, form.Request())
	if err != nil {
		log.Warn().Err(err).Str("login_id", form.LoginID).Msg("Registration failed")
		c.fail(epoch, apiclient.UserMessage(err))
		return nil, errors.Wrap(err, "[Register]")
	}
	log.Info().Str("login_id", form.LoginID).Msg("Registered")
	return resp, nil
}

// HandleOAuthCallback completes a social sign-in from the redirect's query
// and returns where the browser should go next: home on success, otherwise
// the login view with ?error=<reason>.
func (c *Controller) HandleOAuthCallback(ctx context.Context, query url.Values) (string, error) {
	cb, err := oauthmodel.ParseCallback(query)
	if err != nil {
		reason := oauthmodel.ReasonOf(err)
		log.Warn().Err(err).Str("reason", reason).Msg("OAuth callback rejected")
		return oauthmodel.FailureRedirect(guard.LoginRoute, reason), err
	}

	if err := c.begin(ctx, tokenstore.Record{
		AccessToken:  cb.AccessToken,
		RefreshToken: cb.RefreshToken,
		User:         cb.User,
	}); err != nil {
		return oauthmodel.FailureRedirect(guard.LoginRoute, ReasonStorage), err
	}
	log.Info().Str("user_id", string(cb.User.ID)).Str("provider", string(cb.User.Provider)).Msg("Signed in with OAuth")
	return guard.HomeRoute, nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one request. A rejected refresh token ends the session.
func (c *Controller) Refresh(ctx context.Context) error {
	if _, err := c.Renew(ctx, nil); err != nil {
		return errors.Wrap(err, "[Refresh]")
	}
	return nil
}

// Logout ends the session locally and then asks the server to invalidate the
// refresh token. Failing to reach the server does not undo the local logout.
func (c *Controller) Logout(ctx context.Context) error {
	ended, refreshToken, _, err := c.end(ctx, nil, "")
	if refreshToken != "" {
		if logoutErr := c.api.Logout(ctx, ended.AccessToken, refreshToken); logoutErr != nil {
			log.Warn().Err(logoutErr).Msg("Server logout failed, local session cleared")
		}
	}
	if ended.User != nil {
		log.Info().Str("user_id", string(ended.User.ID)).Msg("Signed out")
	}
	return err
}

// RestoreOnStartup loads the saved session and confirms it with a profile
// fetch. Until the fetch resolves the session is Restoring and optimistically
// authenticated; if the fetch fails the session is ended. It runs once; later
// calls return the first result.
func (c *Controller) RestoreOnStartup(ctx context.Context) error {
	c.restoreOnce.Do(func() {
		c.restoreErr = c.restore(ctx)
	})
	return c.restoreErr
}

var errNoChange = errors.New("no change")

func (c *Controller) restore(ctx context.Context) error {
	rec, err := c.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoSession) {
		log.Debug().Msg("No saved session")
		return nil
	}
	if err != nil {
		log.Err(err).Msg("Failed to load saved session")
		return errors.Wrap(err, "[RestoreOnStartup]")
	}

	c.mu.Lock()
	snap, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		if prev.State != sessions.Unauthenticated {
			return prev, errNoChange
		}
		return sessions.Snapshot{
			State:        sessions.Restoring,
			AccessToken:  rec.AccessToken,
			AccessExpiry: token.New(rec.AccessToken, "").Expiry,
			User:         rec.User,
			IsLoading:    true,
			Epoch:        prev.Epoch + 1,
		}, nil
	})
	if err == nil {
		c.refreshToken = rec.RefreshToken
	}
	c.mu.Unlock()
	if errors.Is(err, errNoChange) {
		log.Debug().Msg("Session already started, skipping restore")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[RestoreOnStartup]")
	}

	profile, err := c.api.Profile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Saved session could not be confirmed, signing out")
		ended, refreshToken, ok, endErr := c.end(ctx, sameEpoch(snap.Epoch), MsgRestoreFailed)
		if endErr != nil {
			log.Err(endErr).Msg("Failed to clear saved session")
		}
		if ok && refreshToken != "" && !apiclient.IsRejected(err) {
			if logoutErr := c.api.Logout(ctx, ended.AccessToken, refreshToken); logoutErr != nil {
				log.Debug().Err(logoutErr).Msg("Server logout after failed restore")
			}
		}
		return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.sessions.Get()
	if cur.Epoch != snap.Epoch {
		return nil
	}
	if err := c.store.Save(ctx, tokenstore.Record{AccessToken: cur.AccessToken, RefreshToken: c.refreshToken, User: profile}); err != nil {
		log.Warn().Err(err).Msg("Failed to save refreshed profile")
	}
	if _, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		prev.State = sessions.Authenticated
		prev.User = profile
		prev.IsLoading = false
		return prev, nil
	}); err != nil {
		return errors.Wrap(err, "[RestoreOnStartup]")
	}
	log.Info().Str("user_id", string(profile.ID)).Msg("Restored saved session")
	return nil
}

// RefetchProfile reloads the user from the server and replaces the cached
// copy.
func (c *Controller) RefetchProfile(ctx context.Context) (*users.Profile, error) {
	snap := c.sessions.Get()
	if !snap.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	profile, err := c.api.Profile(ctx)
	if err != nil {
		c.fail(snap.Epoch, apiclient.UserMessage(err))
		return nil, errors.Wrap(err, "[RefetchProfile]")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.sessions.Get()
	if cur.Epoch != snap.Epoch || !cur.IsAuthenticated() {
		return nil, apperrors.ErrSessionEnded
	}
	if err := c.store.Save(ctx, tokenstore.Record{AccessToken: cur.AccessToken, RefreshToken: c.refreshToken, User: profile}); err != nil {
		return nil, errors.Wrap(err, "[RefetchProfile] save session")
	}
	if _, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		prev.User = profile
		prev.Error = ""
		return prev, nil
	}); err != nil {
		return nil, errors.Wrap(err, "[RefetchProfile]")
	}
	return profile, nil
}

// SendVerificationEmail asks the server to mail a verification code.
func (c *Controller) SendVerificationEmail(ctx context.Context, email string) error {
	if err := c.validator.ValidateEmail(email); err != nil {
		return err
	}
	epoch := c.sessions.Get().Epoch
	resp, err := c.api.SendVerificationEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		c.fail(epoch, apiclient.UserMessage(err))
		return errors.Wrap(err, "[SendVerificationEmail]")
	}
	if !resp.Confirmed() {
		msg := resp.Message
		if msg == "" {
			msg = "The verification email could not be sent."
		}
		c.fail(epoch, msg)
		return errors.New("[SendVerificationEmail] " + msg)
	}
	return nil
}

// CheckVerificationCode reports whether code matches the one sent to email.
func (c *Controller) CheckVerificationCode(ctx context.Context, email, code string) (bool, error) {
	if err := c.validator.ValidateEmail(email); err != nil {
		return false, err
	}
	if err := c.validator.ValidateVerificationCode(code); err != nil {
		return false, err
	}
	epoch := c.sessions.Get().Epoch
	resp, err := c.api.CheckVerificationCode(ctx, strings.TrimSpace(email), strings.TrimSpace(code))
	if err != nil {
		c.fail(epoch, apiclient.UserMessage(err))
		return false, errors.Wrap(err, "[CheckVerificationCode]")
	}
	if !resp.Confirmed() {
		msg := resp.Message
		if msg == "" {
			msg = "The verification code is incorrect."
		}
		c.fail(epoch, msg)
		return false, nil
	}
	return true, nil
}

// OAuthLoginURL returns the API address that starts a social sign-in.
func (c *Controller) OAuthLoginURL(provider string) (string, error) {
	p := users.ProviderType(strings.ToLower(strings.TrimSpace(provider)))
	if !slices.Contains(c.providers, p) {
		return "", errors.Wrapf(ErrUnsupportedProvider, "[OAuthLoginURL] %q", provider)
	}
	return c.api.OAuthLoginURL(p), nil
}

// ClearError removes the displayed error, typically when the user edits a
// form again.
func (c *Controller) ClearError() {
	_, _ = c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		if prev.Error == "" {
			return prev, errNoChange
		}
		prev.Error = ""
		return prev, nil
	})
}

// Token returns the current access token. It never includes the refresh
// token.
func (c *Controller) Token() (*oauth2.Token, error) {
	snap := c.sessions.Get()
	if !snap.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	return accessToken(snap), nil
}

// Renew refreshes on behalf of a request that was rejected with stale. If the
// session has already moved on to a newer token that token is returned
// instead; otherwise every caller in the same session shares one refresh.
func (c *Controller) Renew(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	snap := c.sessions.Get()
	if !snap.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	if stale != nil && stale.AccessToken != snap.AccessToken {
		return accessToken(snap), nil
	}
	return c.refresher.Do(ctx, snap.Epoch, func(ctx context.Context) (*oauth2.Token, error) {
		return c.refresh(ctx, snap.Epoch, snap.AccessToken)
	})
}

// Expire ends the session after the server refused a freshly refreshed token.
func (c *Controller) Expire(ctx context.Context, rejected *oauth2.Token, cause error) {
	match := func(s sessions.Snapshot) bool {
		return s.IsAuthenticated() && (rejected == nil || s.AccessToken == rejected.AccessToken)
	}
	_, _, ok, err := c.end(ctx, match, MsgSessionExpired)
	if ok {
		log.Warn().Err(cause).Msg("Session expired")
	}
	if err != nil {
		log.Err(err).Msg("Failed to clear expired session")
	}
}

// refresh performs the exchange for epoch. observed is the access token the
// caller saw; if it has already been replaced no request is made.
func (c *Controller) refresh(ctx context.Context, epoch uint64, observed string) (*oauth2.Token, error) {
	c.mu.Lock()
	snap := c.sessions.Get()
	if snap.Epoch != epoch || !snap.IsAuthenticated() {
		c.mu.Unlock()
		return nil, ErrStaleRefresh
	}
	if snap.AccessToken != observed {
		c.mu.Unlock()
		return accessToken(snap), nil
	}
	refreshToken := c.refreshToken
	resume := snap.State
	if resume == sessions.Refreshing {
		resume = sessions.Authenticated
	}
	if snap.State == sessions.Authenticated {
		if _, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
			prev.State = sessions.Refreshing
			return prev, nil
		}); err != nil {
			c.mu.Unlock()
			return nil, errors.Wrap(err, "[refresh]")
		}
	}
	c.mu.Unlock()

	var resp *apiclient.RefreshResponse
	var err error
	if refreshToken == "" {
		err = apperrors.ErrMissingRefreshToken
	} else {
		resp, err = c.api.Refresh(ctx, refreshToken)
	}
	if err != nil {
		if refreshToken == "" || apiclient.IsRejected(err) {
			if _, _, ok, endErr := c.end(ctx, sameEpoch(epoch), MsgSessionExpired); ok {
				log.Warn().Err(err).Msg("Refresh rejected, session ended")
				if endErr != nil {
					log.Err(endErr).Msg("Failed to clear session after rejected refresh")
				}
			}
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)
		}
		log.Warn().Err(err).Msg("Refresh failed")
		c.settle(epoch, resume, apiclient.UserMessage(err))
		return nil, err
	}

	next := resp.RefreshToken
	if next == "" {
		next = refreshToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.sessions.Get()
	if cur.Epoch != epoch {
		log.Info().Msg("Discarding refresh result for an ended session")
		return nil, ErrStaleRefresh
	}
	if err := c.store.Save(ctx, tokenstore.Record{AccessToken: resp.AccessToken, RefreshToken: next, User: cur.User}); err != nil {
		c.settleLocked(epoch, resume, "Could not save your session on this device.")
		return nil, errors.Wrap(err, "[refresh] save session")
	}
	committed, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		prev.State = resume
		prev.AccessToken = resp.AccessToken
		prev.AccessExpiry = token.New(resp.AccessToken, "").Expiry
		prev.Error = ""
		return prev, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[refresh]")
	}
	c.refreshToken = next
	log.Debug().Msg("Access token refreshed")
	return accessToken(committed), nil
}

// begin saves rec and then publishes it as a new authenticated session.
func (c *Controller) begin(ctx context.Context, rec tokenstore.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(ctx, rec); err != nil {
		log.Err(err).Msg("Failed to save session")
		_, _ = c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
			prev.Error = "Could not save your session on this device."
			return prev, nil
		})
		return errors.Wrap(err, "[begin] save session")
	}
	if _, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		return sessions.Snapshot{
			State:        sessions.Authenticated,
			AccessToken:  rec.AccessToken,
			AccessExpiry: token.New(rec.AccessToken, "").Expiry,
			User:         rec.User,
			Epoch:        prev.Epoch + 1,
		}, nil
	}); err != nil {
		return errors.Wrap(err, "[begin] publish session")
	}
	c.refreshToken = rec.RefreshToken
	return nil
}

// end clears storage and state when match accepts the current session (nil
// matches any). It returns the session that was ended and its refresh token.
// State is reset even when clearing storage fails.
func (c *Controller) end(ctx context.Context, match func(sessions.Snapshot) bool, message string) (sessions.Snapshot, string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.sessions.Get()
	if match != nil && !match(prev) {
		return prev, "", false, nil
	}
	refreshToken := c.refreshToken
	c.refreshToken = ""

	clearErr := c.store.Clear(ctx)
	if _, err := c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		return sessions.Snapshot{
			State: sessions.Unauthenticated,
			Error: message,
			Epoch: prev.Epoch + 1,
		}, nil
	}); err != nil {
		return prev, refreshToken, true, errors.Wrap(err, "[end]")
	}
	if clearErr != nil {
		return prev, refreshToken, true, errors.Wrap(clearErr, "[end] clear storage")
	}
	return prev, refreshToken, true, nil
}

// fail records message as the session error unless the session changed since
// the operation began.
func (c *Controller) fail(epoch uint64, message string) {
	_, _ = c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		if prev.Epoch != epoch {
			return prev, errNoChange
		}
		prev.Error = message
		return prev, nil
	})
}

// settle returns a session from Refreshing to resume after a refresh that
// failed without ending it.
func (c *Controller) settle(epoch uint64, resume sessions.State, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleLocked(epoch, resume, message)
}

func (c *Controller) settleLocked(epoch uint64, resume sessions.State, message string) {
	_, _ = c.sessions.Update(func(prev sessions.Snapshot) (sessions.Snapshot, error) {
		if prev.Epoch != epoch {
			return prev, errNoChange
		}
		if prev.State == sessions.Refreshing {
			prev.State = resume
		}
		prev.Error = message
		return prev, nil
	})
}

func sameEpoch(epoch uint64) func(sessions.Snapshot) bool {
	return func(s sessions.Snapshot) bool {
		return s.Epoch == epoch
	}
}

func accessToken(s sessions.Snapshot) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.AccessExpiry,
	}
}
