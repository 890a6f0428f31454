package webflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/syncx"
)

// refreshTimeout is how long a concurrent refresh waits for the one in
// flight.
const refreshTimeout = 5 * time.Second

// User is a logged-in user. Its HTTP client attaches the access token to
// every request and refreshes it when the server says it expired.
type User struct {
	client      *Client
	tokens      atomic.Pointer[domain.UserTokens] // nil once logged out
	httpClient  *http.Client
	refreshTask *syncx.BestEffortRunOnceTask[refreshResult]
}

type refreshResult struct {
	tokens *domain.UserTokens
	err    error
}

func newUser(c *Client, tokens domain.UserTokens) *User {
	u := &User{client: c}
	u.tokens.Store(&tokens)

	hc := *c.httpClient
	hc.Transport = &authTransport{user: u, base: c.httpClient.Transport, logger: c.logger}
	u.httpClient = &hc

	u.refreshTask = syncx.NewBestEffortRunOnceTask(refreshTimeout, func(ctx context.Context) refreshResult {
		tokens, err := c.refreshTokensForUser(ctx, u)
		return refreshResult{tokens: tokens, err: err}
	})
	return u
}

// UserSession is an opaque copy of a user's tokens. It can be marshalled
// and turned back into a User with Client.UserFromSession.
type UserSession struct {
	tokens domain.UserTokens
}

func (s UserSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.tokens)
}

func (s *UserSession) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.tokens)
}

// currentTokens returns the tokens or ErrUserLoggedOut.
func (u *User) currentTokens() (*domain.UserTokens, error) {
	t := u.tokens.Load()
	if t == nil {
		return nil, ErrUserLoggedOut
	}
	return t, nil
}

func (u *User) IsLoggedIn() bool { return u.tokens.Load() != nil }

func (u *User) Session() (UserSession, error) {
	t, err := u.currentTokens()
	if err != nil {
		return UserSession{}, err
	}
	return UserSession{tokens: *t}, nil
}

// UserID is the legacy numeric user id.
func (u *User) UserID() (string, error) {
	t, err := u.currentTokens()
	if err != nil {
		return "", err
	}
	return t.IDTokenClaims.UserID, nil
}

func (u *User) UUID() (string, error) {
	t, err := u.currentTokens()
	if err != nil {
		return "", err
	}
	return t.IDTokenClaims.Sub, nil
}

// HTTPClient returns the authenticated client. Requests made with it after
// logout go out without a token.
func (u *User) HTTPClient() *http.Client { return u.httpClient }

// MakeAuthenticatedRequest sends req with the user's access token. A 401 is
// answered by refreshing the tokens and retrying once. If the refresh token
// has been revoked the user is logged out.
func (u *User) MakeAuthenticatedRequest(req *http.Request) (*http.Response, error) {
	if _, err := u.currentTokens(); err != nil {
		return nil, err
	}
	return u.httpClient.Do(req)
}

// FetchProfileData fetches the user's profile.
func (u *User) FetchProfileData(ctx context.Context) (*domain.UserProfileResponse, error) {
	t, err := u.currentTokens()
	if err != nil {
		return nil, err
	}
	return u.client.api.UserProfile(ctx, u.httpClient, t.IDTokenClaims.Sub)
}

// WebSessionURL returns a URL that logs the user in to the web client
// clientID and then redirects to redirectURI. state is optional.
func (u *User) WebSessionURL(ctx context.Context, clientID, redirectURI, state string) (string, error) {
	if _, err := u.currentTokens(); err != nil {
		return "", err
	}
	resp, err := u.client.api.SessionExchange(ctx, u.httpClient, clientID, redirectURI, state)
	if err != nil {
		return "", err
	}
	return u.client.config.Endpoint("/session/" + resp.Code), nil
}

// OneTimeCode gets a short lived authorization code for clientID.
func (u *User) OneTimeCode(ctx context.Context, clientID string) (string, error) {
	if _, err := u.currentTokens(); err != nil {
		return "", err
	}
	resp, err := u.client.api.CodeExchange(ctx, u.httpClient, clientID)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// AccountPagesURL is where the user manages their account.
func (u *User) AccountPagesURL() (string, error) {
	if _, err := u.currentTokens(); err != nil {
		return "", err
	}
	return u.client.config.Endpoint("/account/summary"), nil
}

// Logout drops the tokens and removes the stored session. The returned
// error only reports a failed storage delete; the user is logged out
// regardless.
func (u *User) Logout(ctx context.Context) error {
	u.tokens.Store(nil)
	u.client.logger.Info("user logged out")
	return u.client.destroySession(ctx)
}

// refreshTokens runs at most one refresh at a time for this user.
func (u *User) refreshTokens(ctx context.Context) (*domain.UserTokens, error) {
	if t := u.tokens.Load(); t == nil || t.RefreshToken == "" {
		return nil, &RefreshTokenError{Kind: NoRefreshToken}
	}

	res, ok := u.refreshTask.Run(ctx)
	if !ok {
		return nil, &RefreshTokenError{Kind: ConcurrentRefreshFailure}
	}

	if invalidGrant(res.err) {
		u.client.logger.Info("invalid refresh token, logging user out")
		if err := u.Logout(ctx); err != nil {
			u.client.logger.Error("failed to log out user", "error", err)
		}
		return nil, &RefreshTokenError{Kind: UserWasLoggedOut}
	}
	return res.tokens, res.err
}

func (u *User) String() string {
	if t := u.tokens.Load(); t != nil && t.IDTokenClaims.Sub != "" {
		return fmt.Sprintf("User(uuid=%s)", t.IDTokenClaims.Sub)
	}
	return "User(logged-out)"
}

// Equal reports whether both users hold the same tokens.
func (u *User) Equal(other *User) bool {
	if other == nil {
		return false
	}
	a, b := u.tokens.Load(), other.tokens.Load()
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
