package webflows

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/api"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
)

// authTransport adds the user's bearer token and retries once after a
// refresh when the token is rejected.
type authTransport struct {
	user   *User
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.transport().RoundTrip(t.authorize(req, t.user.tokens.Load()))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		t.logger.Debug("not retrying request with a body that can't be replayed", "path", req.URL.Path)
		return resp, nil
	}

	tokens, rerr := t.user.refreshTokens(req.Context())
	if rerr != nil {
		t.logger.Error("failed to refresh user tokens", "error", rerr)
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return resp, nil
		}
		retry.Body = body
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.transport().RoundTrip(t.authorize(retry, tokens))
}

// authorize returns a copy of req carrying the access token. Without tokens
// the copy goes out unauthenticated.
func (t *authTransport) authorize(req *http.Request, tokens *domain.UserTokens) *http.Request {
	out := req.Clone(req.Context())
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", api.UserAgent)
	}
	if tokens == nil {
		t.logger.Error("no access token to include in request", "path", req.URL.Path)
		out.Header.Del("Authorization")
		return out
	}
	out.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	return out
}

func (t *authTransport) transport() http.RoundTripper {
	if t.base == nil {
		return http.DefaultTransport
	}
	return t.base
}
