package webflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/api"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/session"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store/drivers/memory"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/token"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/either"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

const eidCancelledDescription = "EID authentication was canceled by the user"

// ClientOptions configures a Client. The zero value keeps everything in
// memory and uses a default HTTP client.
type ClientOptions struct {
	// Store persists the pending login and sessions. Wrap it with
	// store.NewEncrypted for anything that touches disk.
	Store store.Store

	// HTTPClient is the base for every request, including the ones made on
	// behalf of users.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Tracker *Tracker

	// LegacyClientID and LegacyClientSecret identify the client the legacy
	// SDK was configured with. Legacy sessions are only migrated when set.
	LegacyClientID     string
	LegacyClientSecret string

	// LogoutCallback runs after a user's session is destroyed.
	LogoutCallback func()

	// JWKS overrides where ID token signing keys come from.
	JWKS token.JWKSSource
}

// Client is a client registered with Schibsted account. It drives logins
// and hands out Users.
type Client struct {
	config     domain.ClientConfiguration
	httpClient *http.Client
	api        *api.Client
	tokens     *token.Handler
	states     *session.StateStorage
	sessions   session.Storage
	urls       *urlBuilder
	tracker    *Tracker
	logger     *slog.Logger
	onLogout   func()

	mu       sync.Mutex
	observer *AuthResultObserver
}

// NewClient creates a client for config.
func NewClient(config domain.ClientConfiguration, opts ClientOptions) *Client {
	logger := slogx.OrDefault(opts.Logger).With("client_id", config.ClientID)

	kv := opts.Store
	if kv == nil {
		kv = memory.NewStore()
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}

	httpClient := loggingClient(opts.HTTPClient, logger)
	apiClient := api.NewClient(config.ServerURL.String(), httpClient)

	jwks := opts.JWKS
	if jwks == nil {
		jwks = token.NewRemoteJWKS(apiClient, logger)
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		api:        apiClient,
		tokens:     token.NewHandler(config, apiClient, jwks, logger),
		states:     session.NewStateStorage(kv),
		tracker:    tracker,
		logger:     logger,
		onLogout:   opts.LogoutCallback,
	}
	c.urls = &urlBuilder{config: config, states: c.states}

	var sessions session.Storage = session.NewUpgradingStorage(
		session.NewKVStorage(kv, session.SessionsNamespace),
		session.NewKVStorage(kv, session.PreviousSessionsNamespace),
		logger,
	)
	if !config.SkipLegacySessionMigration && opts.LegacyClientID != "" {
		sessions = session.NewMigratingStorage(session.MigratingStorageConfig{
			NewStorage:     sessions,
			LegacyStorage:  session.NewLegacySessionStorage(session.NewLegacyTokenStorage(kv)),
			LegacyClient:   session.NewLegacyClient(opts.LegacyClientID, opts.LegacyClientSecret, apiClient, logger),
			LegacyClientID: opts.LegacyClientID,
			ClientID:       config.ClientID,
			Requester:      c,
			Logger:         logger,
		})
	}
	c.sessions = sessions

	return c
}

// loggingClient copies base with its transport wrapped in request logging.
func loggingClient(base *http.Client, logger *slog.Logger) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: api.DefaultTimeout}
	}
	hc := *base
	hc.Transport = &slogx.Transport{Base: base.Transport, Logger: logger}
	return &hc
}

func (c *Client) Configuration() domain.ClientConfiguration { return c.config }

func (c *Client) Tracker() *Tracker { return c.tracker }

// LoginURL starts a login: the returned URL is opened in a browser and the
// redirect is passed to HandleAuthenticationResponse.
func (c *Client) LoginURL(ctx context.Context, req domain.AuthRequest) (string, error) {
	loginURL, err := c.urls.loginURL(ctx, req)
	if err != nil {
		return "", err
	}
	c.logger.Debug("generated login url", "url", loginURL)
	return loginURL, nil
}

// HandleAuthenticationResponseURL is HandleAuthenticationResponse for the
// full redirect URI.
func (c *Client) HandleAuthenticationResponseURL(ctx context.Context, redirectURL string) (*User, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, c.loginFailed(unexpectedLoginError("Invalid authentication response: " + err.Error()))
	}
	return c.HandleAuthenticationResponse(ctx, u.RawQuery)
}

// HandleAuthenticationResponse completes a login from the redirect query.
// Errors are always *LoginError.
func (c *Client) HandleAuthenticationResponse(ctx context.Context, query string) (*User, error) {
	user, lerr := c.handleAuthenticationResponse(ctx, query)
	if lerr != nil {
		return nil, c.loginFailed(lerr)
	}
	c.tracker.Track(UserLoginSuccessful)
	return user, nil
}

// HandleAuthenticationResponseAsync runs HandleAuthenticationResponse on a
// goroutine and hands the outcome to callback.
func (c *Client) HandleAuthenticationResponseAsync(ctx context.Context, query string, callback func(either.Either[*LoginError, *User])) {
	go func() {
		user, err := c.HandleAuthenticationResponse(ctx, query)
		if err != nil {
			var lerr *LoginError
			errors.As(err, &lerr)
			callback(either.Left[*LoginError, *User](lerr))
			return
		}
		callback(either.Right[*LoginError](user))
	}()
}

func (c *Client) loginFailed(lerr *LoginError) error {
	if lerr.Kind == CancelledByUser {
		c.tracker.Track(UserLoginCanceled)
	} else {
		c.tracker.Track(UserLoginFailed)
	}
	c.logger.Debug("login failed", "error", lerr)
	return lerr
}

func (c *Client) handleAuthenticationResponse(ctx context.Context, query string) (*User, *LoginError) {
	if query == "" {
		return nil, unexpectedLoginError("No authentication response")
	}
	resp := parseQuery(query)

	stored, err := c.states.AuthState(ctx)
	if err != nil || stored == nil {
		return nil, &LoginError{Kind: AuthStateReadError, Err: err}
	}

	if resp["error"] == domain.ErrorCodeAccessDenied && resp["error_description"] == eidCancelledDescription {
		return nil, &LoginError{Kind: CancelledByUser}
	}

	if state, ok := resp["state"]; !ok || state != stored.State {
		return nil, &LoginError{Kind: UnsolicitedResponse}
	}
	if err := c.states.RemoveAuthState(ctx); err != nil {
		c.logger.Error("failed to remove auth state", "error", err)
	}

	if code, ok := resp["error"]; ok {
		return nil, &LoginError{
			Kind:  AuthenticationErrorResponse,
			OAuth: &domain.OAuthError{Code: code, Description: resp["error_description"]},
		}
	}

	code, ok := resp["code"]
	if !ok {
		return nil, unexpectedLoginError("Missing authorization code in authentication response")
	}

	sess, err := c.MakeTokenRequest(ctx, code, stored)
	if err != nil {
		c.logger.Debug("token error response", "error", err)
		if oe := tokenOAuthError(err); oe != nil {
			return nil, &LoginError{Kind: TokenErrorResponse, OAuth: oe, Err: err}
		}
		return nil, &LoginError{Kind: UnexpectedError, Message: err.Error(), Err: err}
	}

	if err := c.sessions.Save(ctx, *sess); err != nil {
		c.logger.Error("failed to save session", "error", err)
	}
	return newUser(c, sess.UserTokens), nil
}

// tokenOAuthError extracts the OAuth error of a failed token request, if
// the server sent one.
func tokenOAuthError(err error) *domain.OAuthError {
	var terr *token.TokenError
	if !errors.As(err, &terr) || terr.Kind != token.TokenRequestError || terr.HTTPErr == nil {
		return nil
	}
	oe, ok := terr.HTTPErr.OAuthError()
	if !ok {
		return nil
	}
	return oe
}

// MakeTokenRequest exchanges an authorization code and returns the session
// it yields, without saving it. state is nil for codes not obtained through
// LoginURL.
func (c *Client) MakeTokenRequest(ctx context.Context, code string, state *domain.AuthState) (*domain.StoredUserSession, error) {
	res, err := c.tokens.ExchangeAuthCode(ctx, code, state)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("token response", "tokens", res.UserTokens.String())

	return &domain.StoredUserSession{
		ClientID:   c.config.ClientID,
		UserTokens: res.UserTokens,
		UpdatedAt:  time.Now(),
	}, nil
}

// ResumeLastLoggedInUser returns the user of the stored session, or nil if
// there is none. A failure to read the session is a *store.StorageError.
func (c *Client) ResumeLastLoggedInUser(ctx context.Context) (*User, error) {
	stored, err := c.sessions.Get(ctx, c.config.ClientID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	return newUser(c, stored.UserTokens), nil
}

// ResumeLastLoggedInUserAsync runs ResumeLastLoggedInUser on a goroutine.
// A missing session is Right(nil).
func (c *Client) ResumeLastLoggedInUserAsync(ctx context.Context, callback func(either.Either[error, *User])) {
	go func() {
		callback(either.FromResult(c.ResumeLastLoggedInUser(ctx)))
	}()
}

// UserFromSession restores a user from a session obtained with
// User.Session.
func (c *Client) UserFromSession(s UserSession) *User {
	return newUser(c, s.tokens)
}

// refreshTokensForUser swaps user's tokens for refreshed ones and saves
// them. A user that logged out meanwhile keeps being logged out.
func (c *Client) refreshTokensForUser(ctx context.Context, user *User) (*domain.UserTokens, error) {
	current := user.tokens.Load()
	if current == nil || current.RefreshToken == "" {
		return nil, &RefreshTokenError{Kind: NoRefreshToken}
	}

	resp, err := c.tokens.ExchangeRefreshToken(ctx, current.RefreshToken, "")
	if err != nil {
		c.logger.Error("failed to refresh tokens", "error", err)
		return nil, &RefreshTokenError{Kind: RefreshRequestFailed, Cause: httpCause(err)}
	}

	for {
		tokens := user.tokens.Load()
		if tokens == nil {
			c.logger.Info("user logged out during token refresh, discarding new tokens")
			return nil, &RefreshTokenError{Kind: UnexpectedRefreshError, Message: "User has logged-out during token refresh"}
		}

		refreshed := tokens.WithRefreshed(resp.AccessToken, resp.RefreshToken)
		if !user.tokens.CompareAndSwap(tokens, &refreshed) {
			continue
		}

		stored := domain.StoredUserSession{ClientID: c.config.ClientID, UserTokens: refreshed, UpdatedAt: time.Now()}
		if err := c.sessions.Save(ctx, stored); err != nil {
			c.logger.Error("failed to save refreshed session", "error", err)
		}
		c.logger.Info("user tokens refreshed")
		return &refreshed, nil
	}
}

func httpCause(err error) *domain.HTTPError {
	var terr *token.TokenError
	if errors.As(err, &terr) && terr.HTTPErr != nil {
		return terr.HTTPErr
	}
	var herr *domain.HTTPError
	if errors.As(err, &herr) {
		return herr
	}
	return domain.NewUnexpectedError(err)
}

// destroySession forgets the stored session and tells whoever is
// listening.
func (c *Client) destroySession(ctx context.Context) error {
	err := c.sessions.Remove(ctx, c.config.ClientID)
	if err != nil {
		err = fmt.Errorf("failed to remove session: %w", err)
	}

	if c.onLogout != nil {
		c.onLogout()
	}
	if o := c.currentObserver(); o != nil {
		o.Logout()
	}
	return err
}

func (c *Client) currentObserver() *AuthResultObserver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer
}
