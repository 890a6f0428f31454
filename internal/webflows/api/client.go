// Package api talks to the Schibsted account HTTP endpoints. Every failure is
// reported as a *domain.HTTPError so callers can tell server error responses
// apart from transport problems.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
)

// Version is reported in the User-Agent header.
const Version = "1.0.0"

// UserAgent identifies the SDK on every request.
const UserAgent = "webflows-go/" + Version

// DefaultTimeout bounds requests made with the default HTTP client.
const DefaultTimeout = 30 * time.Second

// Client calls the identity provider. Unauthenticated endpoints (token, JWKS,
// legacy flows) go through its own HTTP client. Token protected endpoints take
// the caller's HTTP client, normally a User's, which handles bearer tokens
// and refresh.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates an API client. A nil httpClient gets a default one with
// DefaultTimeout.
func NewClient(serverURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(serverURL, "/"),
		HTTPClient: httpClient,
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// newFormRequest builds a form encoded POST.
func (c *Client) newFormRequest(ctx context.Context, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// do sends req with hc and decodes a 2xx JSON body into target.
func do(hc *http.Client, req *http.Request, target any) error {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return domain.NewUnexpectedError(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewUnexpectedError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewErrorResponse(resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return domain.NewUnexpectedError(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// envelope is how the /api/2 endpoints wrap their payloads.
type envelope[T any] struct {
	Data T `json:"data"`
}
