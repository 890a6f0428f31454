package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
)

type SessionExchangeResponse struct {
	Code string `json:"code"`
}

type CodeExchangeResponse struct {
	Code string `json:"code"`
}

// UserProfile fetches the profile of userID. hc must attach the user's
// access token.
func (c *Client) UserProfile(ctx context.Context, hc *http.Client, userID string) (*domain.UserProfileResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/2/user/"+url.PathEscape(userID)), nil)
	if err != nil {
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to create request: %w", err))
	}

	var out envelope[domain.UserProfileResponse]
	if err := do(hc, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SessionExchange trades the user's token for a code that starts a web
// session for clientID. state is sent only when non-empty.
func (c *Client) SessionExchange(ctx context.Context, hc *http.Client, clientID, redirectURI, state string) (*SessionExchangeResponse, error) {
	form := url.Values{
		"type":        {"session"},
		"clientId":    {clientID},
		"redirectUri": {redirectURI},
	}
	if state != "" {
		form.Set("state", state)
	}

	req, err := c.newFormRequest(ctx, "/api/2/oauth/exchange", form)
	if err != nil {
		return nil, domain.NewUnexpectedError(err)
	}

	var out envelope[SessionExchangeResponse]
	if err := do(hc, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// CodeExchange trades the user's token for a one-time authorization code for
// clientID.
func (c *Client) CodeExchange(ctx context.Context, hc *http.Client, clientID string) (*CodeExchangeResponse, error) {
	return c.codeExchange(ctx, hc, clientID, nil)
}

// LegacyCodeExchange is CodeExchange authenticated with a token issued to a
// legacy client. It is how legacy sessions are moved to the new client.
func (c *Client) LegacyCodeExchange(ctx context.Context, accessToken, newClientID string) (*CodeExchangeResponse, error) {
	return c.codeExchange(ctx, c.HTTPClient, newClientID, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	})
}

func (c *Client) codeExchange(ctx context.Context, hc *http.Client, clientID string, decorate func(*http.Request)) (*CodeExchangeResponse, error) {
	form := url.Values{
		"type":     {"code"},
		"clientId": {clientID},
	}

	req, err := c.newFormRequest(ctx, "/api/2/oauth/exchange", form)
	if err != nil {
		return nil, domain.NewUnexpectedError(err)
	}
	if decorate != nil {
		decorate(req)
	}

	var out envelope[CodeExchangeResponse]
	if err := do(hc, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
