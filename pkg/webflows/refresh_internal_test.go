package webflows

import (
	"context"
	"net/http"
	"testing"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/testutil"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T) (*testutil.IdP, *User) {
	t.Helper()

	idp := testutil.NewIdP(t)
	c := NewClient(idp.Config(), ClientOptions{
		HTTPClient: idp.Server.Client(),
		Logger:     slogx.Discard(),
	})
	return idp, newUser(c, idp.Tokens(""))
}

func TestUser_RefreshTokensErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("logged out while refreshing", func(t *testing.T) {
		t.Parallel()

		idp, user := newTestUser(t)
		idp.OnRefresh(func() { _ = user.Logout(context.Background()) })

		tokens, err := user.refreshTokens(ctx)
		require.Nil(t, tokens)

		var rerr *RefreshTokenError
		require.ErrorAs(t, err, &rerr)
		require.Equal(t, UnexpectedRefreshError, rerr.Kind)
		require.Equal(t, "User has logged-out during token refresh", rerr.Message)
		require.Nil(t, user.tokens.Load())
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		idp, user := newTestUser(t)
		before := *user.tokens.Load()
		idp.RefreshStatus.Store(http.StatusInternalServerError)

		tokens, err := user.refreshTokens(ctx)
		require.Nil(t, tokens)
		require.ErrorIs(t, err, ErrRefreshRequestFailed)

		var rerr *RefreshTokenError
		require.ErrorAs(t, err, &rerr)
		require.NotNil(t, rerr.Cause)
		require.Equal(t, http.StatusInternalServerError, rerr.Cause.StatusCode)

		require.True(t, user.IsLoggedIn())
		require.True(t, before.Equal(*user.tokens.Load()))
	})

	t.Run("succeeds", func(t *testing.T) {
		t.Parallel()

		_, user := newTestUser(t)
		before := *user.tokens.Load()

		tokens, err := user.refreshTokens(ctx)
		require.NoError(t, err)
		require.NotEqual(t, before.AccessToken, tokens.AccessToken)
		require.Equal(t, before.RefreshToken, tokens.RefreshToken)
		require.Same(t, tokens, user.tokens.Load())
	})
}
