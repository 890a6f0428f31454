package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// TokenResponse is the body of a successful /oauth/token call.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

func (t TokenResponse) String() string {
	return fmt.Sprintf(
		"TokenResponse(access_token: %s, refresh_token: %s, id_token: %s, scope: %s, expires_in: %d)",
		domain.RemoveJWTSignature(t.AccessToken),
		domain.RemoveJWTSignature(t.RefreshToken),
		domain.RemoveJWTSignature(t.IDToken),
		t.Scope,
		t.ExpiresIn,
	)
}

// AuthCodeRequest exchanges an authorization code. CodeVerifier is left out
// of the request when empty.
type AuthCodeRequest struct {
	ClientID     string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// RefreshRequest exchanges a refresh token. Scope is optional.
type RefreshRequest struct {
	ClientID     string
	RefreshToken string
	Scope        string
}

// ExchangeAuthCode calls the token endpoint with the authorization_code grant.
func (c *Client) ExchangeAuthCode(ctx context.Context, r AuthCodeRequest) (*TokenResponse, error) {
	form := url.Values{
		"client_id":    {r.ClientID},
		"grant_type":   {GrantTypeAuthorizationCode},
		"code":         {r.Code},
		"redirect_uri": {r.RedirectURI},
	}
	if r.CodeVerifier != "" {
		form.Set("code_verifier", r.CodeVerifier)
	}
	return c.tokenRequest(ctx, form, nil)
}

// RefreshToken calls the token endpoint with the refresh_token grant.
func (c *Client) RefreshToken(ctx context.Context, r RefreshRequest) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {r.ClientID},
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {r.RefreshToken},
	}
	if r.Scope != "" {
		form.Set("scope", r.Scope)
	}
	return c.tokenRequest(ctx, form, nil)
}

// LegacyRefreshToken refreshes tokens issued to a legacy client, which
// authenticates with HTTP basic auth instead of a public client id.
func (c *Client) LegacyRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
	}
	return c.tokenRequest(ctx, form, func(req *http.Request) {
		req.SetBasicAuth(clientID, clientSecret)
	})
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values, decorate func(*http.Request)) (*TokenResponse, error) {
	req, err := c.newFormRequest(ctx, "/oauth/token", form)
	if err != nil {
		return nil, domain.NewUnexpectedError(err)
	}
	req.Header.Set("X-OIDC", "v1")
	if decorate != nil {
		decorate(req)
	}

	var out TokenResponse
	if err := do(c.HTTPClient, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JWKS fetches the identity provider's signing keys.
func (c *Client) JWKS(ctx context.Context) (jwtx.JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/oauth/jwks"), nil)
	if err != nil {
		return jwtx.JWKS{}, domain.NewUnexpectedError(fmt.Errorf("failed to create request: %w", err))
	}

	var out jwtx.JWKS
	if err := do(c.HTTPClient, req, &out); err != nil {
		return jwtx.JWKS{}, err
	}
	return out, nil
}
