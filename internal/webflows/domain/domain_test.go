package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/stretchr/testify/require"
)

func TestRemoveJWTSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"jwt", "header.payload.signature", "header.payload"},
		{"two segments", "header.payload", "header.payload"},
		{"opaque", "opaque-refresh-token", "opa"},
		{"short opaque", "ab", "ab"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, domain.RemoveJWTSignature(tt.token))
		})
	}
}

func TestUserTokens_StringHidesSignatures(t *testing.T) {
	t.Parallel()

	tokens := domain.UserTokens{
		AccessToken:  "a.b.secret1",
		RefreshToken: "c.d.secret2",
		IDToken:      "e.f.secret3",
	}
	s := tokens.String()
	require.Contains(t, s, "a.b")
	require.NotContains(t, s, "secret")
}

func TestUserTokens_WithRefreshed(t *testing.T) {
	t.Parallel()

	old := domain.UserTokens{AccessToken: "old-at", RefreshToken: "old-rt", IDToken: "id"}

	rotated := old.WithRefreshed("new-at", "new-rt")
	require.Equal(t, "new-at", rotated.AccessToken)
	require.Equal(t, "new-rt", rotated.RefreshToken)
	require.Equal(t, "id", rotated.IDToken)

	// Server didn't rotate, old refresh token must survive
	kept := old.WithRefreshed("new-at", "")
	require.Equal(t, "old-rt", kept.RefreshToken)
	require.Equal(t, "old-at", old.AccessToken, "original is not mutated")
}

func TestParseOAuthError(t *testing.T) {
	t.Parallel()

	oe, ok := domain.ParseOAuthError(`{"error":"invalid_grant","error_description":"expired"}`)
	require.True(t, ok)
	require.Equal(t, domain.ErrorCodeInvalidGrant, oe.Code)
	require.Equal(t, "expired", oe.Description)
	require.Equal(t, "invalid_grant: expired", oe.Error())

	_, ok = domain.ParseOAuthError(`{"message":"nope"}`)
	require.False(t, ok)
	_, ok = domain.ParseOAuthError(`<html>`)
	require.False(t, ok)
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	resp := domain.NewErrorResponse(400, `{"error":"invalid_grant"}`)
	require.True(t, resp.IsErrorResponse())
	oe, ok := resp.OAuthError()
	require.True(t, ok)
	require.Equal(t, "invalid_grant", oe.Code)

	cause := errors.New("connection refused")
	unexpected := domain.NewUnexpectedError(cause)
	require.False(t, unexpected.IsErrorResponse())
	require.ErrorIs(t, unexpected, cause)
	_, ok = unexpected.OAuthError()
	require.False(t, ok)
}

func TestClientConfiguration(t *testing.T) {
	t.Parallel()

	cfg, err := domain.NewClientConfigurationForEnvironment(domain.EnvironmentPre, "client1", "com.example:/login")
	require.NoError(t, err)
	require.Equal(t, "https://identity-pre.schibsted.com", cfg.Issuer())
	require.Equal(t, "https://identity-pre.schibsted.com/oauth/token", cfg.Endpoint("/oauth/token"))

	_, err = domain.NewClientConfiguration("not a url", "client1", "x")
	require.Error(t, err)
	_, err = domain.NewClientConfiguration("https://example.com", "", "x")
	require.Error(t, err)

	env, err := domain.ParseEnvironment("PRO_NO")
	require.NoError(t, err)
	require.Equal(t, domain.EnvironmentProNO, env)
}

func TestParseMfaType(t *testing.T) {
	t.Parallel()

	m, err := domain.ParseMfaType("eid-se")
	require.NoError(t, err)
	require.Equal(t, domain.MfaEIDSE, m)

	state := &domain.AuthState{MFA: &m}
	require.Equal(t, "eid-se", state.ExpectedAMR())
	require.Empty(t, (&domain.AuthState{}).ExpectedAMR())

	_, err = domain.ParseMfaType("fingerprint")
	require.Error(t, err)
}

func TestUserProfileResponse(t *testing.T) {
	t.Parallel()

	t.Run("filters empty birthday", func(t *testing.T) {
		var p domain.UserProfileResponse
		require.NoError(t, json.Unmarshal([]byte(`{"birthday": "0000-00-00"}`), &p))
		require.Empty(t, p.Birthday)
	})

	t.Run("ignores boolean verified dates", func(t *testing.T) {
		var p domain.UserProfileResponse
		require.NoError(t, json.Unmarshal([]byte(`{"emailVerified": false, "phoneNumberVerified": false}`), &p))
		require.Empty(t, p.EmailVerified)
		require.Empty(t, p.PhoneNumberVerified)
	})

	t.Run("empty address array", func(t *testing.T) {
		var p domain.UserProfileResponse
		require.NoError(t, json.Unmarshal([]byte(`{"addresses": []}`), &p))
		require.NotNil(t, p.Addresses)
		require.Empty(t, p.Addresses)
	})

	t.Run("full", func(t *testing.T) {
		raw := `{
			"uuid": "96085e85-349b-4dbf-9809-fa721e7bae46",
			"userId": "12345",
			"status": 1,
			"email": "test@example.com",
			"emailVerified": "1970-01-01 00:00:00",
			"name": {"givenName": "Unit", "familyName": "Test", "formatted": "Unit Test"},
			"addresses": {"home": {"formatted": "12345 Test, Sverige", "type": "home"}},
			"birthday": "1970-01-01 00:00:00",
			"accounts": {"client1": {"id": "client1", "accountName": "Example"}},
			"merchants": [12345]
		}`
		var p domain.UserProfileResponse
		require.NoError(t, json.Unmarshal([]byte(raw), &p))
		require.Equal(t, "12345", p.UserID)
		require.Equal(t, 1, *p.Status)
		require.Equal(t, domain.LenientString("1970-01-01 00:00:00"), p.EmailVerified)
		require.Equal(t, "Unit Test", p.Name.Formatted)
		require.Equal(t, domain.AddressHome, p.Addresses[domain.AddressHome].Type)
		require.Equal(t, "Example", p.Accounts["client1"].AccountName)
		require.Equal(t, []int{12345}, p.Merchants)
	})
}
