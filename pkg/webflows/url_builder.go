package webflows

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/session"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
)

var defaultScopeValues = []string{"openid", "offline_access"}

type urlBuilder struct {
	config domain.ClientConfiguration
	states *session.StateStorage
}

// loginURL generates fresh PKCE values, remembers them as the pending login
// and returns the authorize URL. A previous pending login is replaced.
func (b *urlBuilder) loginURL(ctx context.Context, req domain.AuthRequest) (string, error) {
	state := req.State
	if state == "" {
		var err error
		if state, err = cryptox.RandomString(cryptox.StateLength); err != nil {
			return "", err
		}
	}
	nonce, err := cryptox.RandomString(cryptox.NonceLength)
	if err != nil {
		return "", err
	}
	verifier, err := cryptox.RandomString(cryptox.CodeVerifierLength)
	if err != nil {
		return "", err
	}

	authState := domain.AuthState{State: state, Nonce: nonce, CodeVerifier: verifier, MFA: req.MFA}
	if err := b.states.SaveAuthState(ctx, authState); err != nil {
		return "", fmt.Errorf("failed to save auth state: %w", err)
	}

	params := url.Values{
		"client_id":             {b.config.ClientID},
		"redirect_uri":          {b.config.RedirectURI},
		"response_type":         {"code"},
		"state":                 {state},
		"scope":                 {scopeString(req.ExtraScopeValues)},
		"nonce":                 {nonce},
		"code_challenge":        {cryptox.S256(verifier)},
		"code_challenge_method": {"S256"},
	}
	if req.LoginHint != "" {
		params.Set("login_hint", req.LoginHint)
	}
	if req.MFA != nil {
		params.Set("acr_values", string(*req.MFA))
	} else {
		params.Set("prompt", "select_account")
	}

	return b.config.Endpoint("/oauth/authorize") + "?" + params.Encode(), nil
}

// scopeString is the sorted union of the default and extra scope values.
func scopeString(extra []string) string {
	scopes := slices.Concat(defaultScopeValues, extra)
	slices.Sort(scopes)
	scopes = slices.Compact(scopes)
	return strings.Join(slices.DeleteFunc(scopes, func(s string) bool { return s == "" }), " ")
}

// parseQuery splits an authentication response query. Keys and values are
// percent-decoded and the last occurrence of a key wins.
func parseQuery(query string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[unescape(k)] = unescape(v)
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
