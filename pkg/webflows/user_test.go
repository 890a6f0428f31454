package webflows_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/testutil"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/webflows"
	"github.com/stretchr/testify/require"
)

func TestUser_Helpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webflows.ClientOptions{})
	user := f.login(t)

	profile, err := user.FetchProfileData(ctx)
	require.NoError(t, err)
	require.Equal(t, testutil.DefaultSubject, profile.UUID)
	require.Empty(t, profile.Birthday, "0000-00-00 means unset")

	webURL, err := user.WebSessionURL(ctx, "web-client", "https://example.com/cb", "st")
	require.NoError(t, err)
	require.Equal(t, f.idp.URL()+"/session/session-code", webURL)

	code, err := user.OneTimeCode(ctx, "web-client")
	require.NoError(t, err)
	require.NotEmpty(t, code)

	accountURL, err := user.AccountPagesURL()
	require.NoError(t, err)
	require.Equal(t, f.idp.URL()+"/account/summary", accountURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.idp.URL()+"/api/2/user/"+testutil.DefaultSubject, nil)
	require.NoError(t, err)
	resp, err := user.MakeAuthenticatedRequest(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUser_Logout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var callbacks atomic.Int32
	f := newFixture(t, webflows.ClientOptions{LogoutCallback: func() { callbacks.Add(1) }})
	user := f.login(t)

	require.NoError(t, user.Logout(ctx))
	require.False(t, user.IsLoggedIn())
	require.Equal(t, "User(logged-out)", user.String())
	require.EqualValues(t, 1, callbacks.Load())

	_, err := user.UUID()
	require.ErrorIs(t, err, webflows.ErrUserLoggedOut)
	_, err = user.UserID()
	require.ErrorIs(t, err, webflows.ErrUserLoggedOut)
	_, err = user.Session()
	require.ErrorIs(t, err, webflows.ErrUserLoggedOut)
	_, err = user.AccountPagesURL()
	require.ErrorIs(t, err, webflows.ErrUserLoggedOut)
	_, err = user.FetchProfileData(ctx)
	require.ErrorIs(t, err, webflows.ErrUserLoggedOut)

	resumed, err := f.client.ResumeLastLoggedInUser(ctx)
	require.NoError(t, err)
	require.Nil(t, resumed)
}

func TestUser_Equal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webflows.ClientOptions{})
	a := f.login(t)
	b := f.login(t)

	resumed, err := f.client.ResumeLastLoggedInUser(ctx)
	require.NoError(t, err)

	require.False(t, a.Equal(b), "different tokens")
	require.True(t, b.Equal(resumed))
	require.False(t, a.Equal(nil))

	s, err := b.Session()
	require.NoError(t, err)
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var restored webflows.UserSession
	require.NoError(t, json.Unmarshal(raw, &restored))
	require.True(t, b.Equal(f.client.UserFromSession(restored)))
}

func TestUser_RefreshOn401(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("refreshes and retries once", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		f.idp.RotateRefreshTokens = true
		user := f.login(t)
		before := tokensOf(t, user)
		f.idp.ExpireAccessTokens()

		_, err := user.FetchProfileData(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, f.idp.RefreshCalls.Load())

		after := tokensOf(t, user)
		require.NotEqual(t, before.AccessToken, after.AccessToken)
		require.NotEqual(t, before.RefreshToken, after.RefreshToken)
		require.Equal(t, before.IDToken, after.IDToken)

		stored := f.storedSession(t)
		require.True(t, stored.UserTokens.Equal(after), "refreshed tokens persisted")
	})

	t.Run("keeps the refresh token when not rotated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		user := f.login(t)
		before := tokensOf(t, user)
		f.idp.ExpireAccessTokens()

		_, err := user.OneTimeCode(ctx, "web-client")
		require.NoError(t, err, "form body is replayed")
		require.Equal(t, before.RefreshToken, tokensOf(t, user).RefreshToken)
	})

	t.Run("concurrent 401s share one refresh", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		user := f.login(t)
		f.idp.ExpireAccessTokens()
		f.idp.OnRefresh(func() { time.Sleep(300 * time.Millisecond) })

		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := user.FetchProfileData(ctx)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		require.EqualValues(t, 1, f.idp.RefreshCalls.Load())
	})

	t.Run("revoked refresh token logs out", func(t *testing.T) {
		t.Parallel()

		var callbacks atomic.Int32
		f := newFixture(t, webflows.ClientOptions{LogoutCallback: func() { callbacks.Add(1) }})
		user := f.login(t)
		f.idp.RevokeRefreshToken(tokensOf(t, user).RefreshToken)
		f.idp.ExpireAccessTokens()

		_, err := user.FetchProfileData(ctx)
		var httpErr *domain.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

		require.False(t, user.IsLoggedIn())
		require.EqualValues(t, 1, callbacks.Load())
		require.Nil(t, f.storedSession(t))
	})

	t.Run("no refresh token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		logged := f.login(t)
		tokens := tokensOf(t, logged)
		tokens.RefreshToken = ""

		raw, err := json.Marshal(tokens)
		require.NoError(t, err)
		var s webflows.UserSession
		require.NoError(t, json.Unmarshal(raw, &s))
		user := f.client.UserFromSession(s)
		f.idp.ExpireAccessTokens()

		_, err = user.FetchProfileData(ctx)
		var httpErr *domain.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
		require.True(t, user.IsLoggedIn())
		require.Zero(t, f.idp.RefreshCalls.Load())
	})

	t.Run("logout during refresh discards new tokens", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		user := f.login(t)
		f.idp.ExpireAccessTokens()
		f.idp.OnRefresh(func() { _ = user.Logout(context.Background()) })

		_, err := user.FetchProfileData(ctx)
		var httpErr *domain.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

		require.False(t, user.IsLoggedIn())
		require.Nil(t, f.storedSession(t), "refresh must not resurrect the session")
	})

	t.Run("401 after refresh is returned without another refresh", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		user := f.login(t)
		before := tokensOf(t, user)
		f.idp.RejectAccess.Store(true)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.idp.URL()+"/api/2/user/"+testutil.DefaultSubject, nil)
		require.NoError(t, err)
		resp, err := user.MakeAuthenticatedRequest(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.EqualValues(t, 1, f.idp.RefreshCalls.Load())
		require.True(t, user.IsLoggedIn())
		require.NotEqual(t, before.AccessToken, tokensOf(t, user).AccessToken, "the refresh itself succeeded")
	})

	t.Run("server error on refresh keeps the tokens", func(t *testing.T) {
		t.Parallel()

		var callbacks atomic.Int32
		f := newFixture(t, webflows.ClientOptions{LogoutCallback: func() { callbacks.Add(1) }})
		user := f.login(t)
		before := tokensOf(t, user)
		f.idp.ExpireAccessTokens()
		f.idp.RefreshStatus.Store(http.StatusInternalServerError)

		_, err := user.FetchProfileData(ctx)
		var httpErr *domain.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode, "the original 401 is returned")

		require.True(t, user.IsLoggedIn())
		require.True(t, before.Equal(tokensOf(t, user)))
		require.Zero(t, callbacks.Load())
		require.True(t, before.Equal(f.storedSession(t).UserTokens))
	})

	t.Run("body that can't be replayed is not retried", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webflows.ClientOptions{})
		user := f.login(t)
		f.idp.ExpireAccessTokens()

		body := io.NopCloser(strings.NewReader("type=code&clientId=web-client"))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.idp.URL()+"/api/2/oauth/exchange", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := user.MakeAuthenticatedRequest(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Zero(t, f.idp.RefreshCalls.Load())
	})
}

func TestRefreshTokenError_Is(t *testing.T) {
	t.Parallel()

	err := error(&webflows.RefreshTokenError{Kind: webflows.RefreshRequestFailed, Cause: domain.NewErrorResponse(500, "boom")})
	require.ErrorIs(t, err, webflows.ErrRefreshRequestFailed)
	require.NotErrorIs(t, err, webflows.ErrNoRefreshToken)

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, 500, httpErr.StatusCode)

	lerr := error(&webflows.LoginError{Kind: webflows.TokenErrorResponse, OAuth: &domain.OAuthError{Code: "invalid_grant"}})
	require.ErrorIs(t, lerr, webflows.ErrTokenErrorResponse)
	require.NotErrorIs(t, lerr, webflows.ErrCancelledByUser)
	require.Contains(t, lerr.Error(), "invalid_grant")
}
