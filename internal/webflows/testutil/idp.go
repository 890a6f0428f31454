// Package testutil runs a fake Schibsted account identity provider for
// tests. It signs real RS256 tokens and serves the token, JWKS, profile and
// exchange endpoints the SDK calls.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	DefaultClientID    = "client1"
	DefaultRedirectURI = "com.example.client1:/login"
	DefaultSubject     = "a5c09f7e-8bc8-4f3d-8a0b-3b0c3f1a1d11"
	DefaultLegacyID    = "12345"
	DefaultKID         = "test-key-1"
)

var (
	keyOnce sync.Once
	keyPEM  []byte
	keyErr  error
)

// signingKey is shared across tests, RSA key generation is slow.
func signingKey(tb testing.TB) []byte {
	tb.Helper()
	keyOnce.Do(func() { keyPEM, keyErr = cryptox.GenerateRSAKey(2048) })
	require.NoError(tb, keyErr)
	return keyPEM
}

// NewSigner returns an RS256 signer with kid over the shared test key.
func NewSigner(tb testing.TB, kid string) jwtx.Signer {
	tb.Helper()
	s, err := jwtx.NewSignerRS256(kid, signingKey(tb))
	require.NoError(tb, err)
	return s
}

// Grant is what an issued authorization code stands for.
type Grant struct {
	Nonce string
	AMR   []string
}

// IdP is a fake identity provider. Fields may be changed between requests.
type IdP struct {
	TB       testing.TB
	Server   *httptest.Server
	Signer   jwtx.Signer
	ClientID string
	Subject  string

	// OmitIDToken drops id_token from code exchange responses.
	OmitIDToken bool
	// RotateRefreshTokens makes refresh responses carry a new refresh token.
	RotateRefreshTokens bool
	// RejectAccess makes the API answer 401 to every access token, fresh
	// ones included.
	RejectAccess atomic.Bool
	// RefreshStatus, when non-zero, is the status every refresh fails with.
	RefreshStatus atomic.Int32

	TokenCalls    atomic.Int32
	RefreshCalls  atomic.Int32
	JWKSCalls     atomic.Int32
	ExchangeCalls atomic.Int32

	mu          sync.Mutex
	grants      map[string]Grant
	validAccess map[string]bool
	revoked     map[string]bool
	seq         int
	refreshHook func()
}

// NewIdP starts a fake identity provider, closed with the test.
func NewIdP(tb testing.TB) *IdP {
	tb.Helper()

	idp := &IdP{
		TB:          tb,
		Signer:      NewSigner(tb, DefaultKID),
		ClientID:    DefaultClientID,
		Subject:     DefaultSubject,
		grants:      make(map[string]Grant),
		validAccess: make(map[string]bool),
		revoked:     make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Get("/oauth/jwks", idp.handleJWKS)
	r.Post("/oauth/token", idp.handleToken)
	r.Group(func(r chi.Router) {
		r.Use(idp.requireBearer)
		r.Get("/api/2/user/{userID}", idp.handleProfile)
		r.Post("/api/2/oauth/exchange", idp.handleExchange)
	})

	idp.Server = httptest.NewServer(r)
	tb.Cleanup(idp.Server.Close)
	return idp
}

// URL is the server base, which is also the issuer.
func (p *IdP) URL() string { return p.Server.URL }

// Config is a client configuration pointing at this IdP.
func (p *IdP) Config() domain.ClientConfiguration {
	cfg, err := domain.NewClientConfiguration(p.URL(), p.ClientID, DefaultRedirectURI)
	require.NoError(p.TB, err)
	return cfg
}

// Authorize issues an authorization code as if the user logged in.
func (p *IdP) Authorize(g Grant) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	code := fmt.Sprintf("code-%d", p.seq)
	p.grants[code] = g
	return code
}

// ExpireAccessTokens makes every issued access token fail with 401.
func (p *IdP) ExpireAccessTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validAccess = make(map[string]bool)
}

// RevokeRefreshToken makes refreshes with rt fail with invalid_grant.
func (p *IdP) RevokeRefreshToken(rt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[rt] = true
}

// OnRefresh runs fn inside each refresh request, before responding.
func (p *IdP) OnRefresh(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshHook = fn
}

// IDToken signs ID token claims for this IdP's client.
func (p *IdP) IDToken(nonce string, amr []string) string {
	claims := jwtx.NewIDClaims(p.Subject, p.URL(), []string{p.ClientID}, nonce, amr, DefaultLegacyID, time.Hour, time.Now())
	return p.Sign(claims)
}

// Sign signs arbitrary claims with the IdP key.
func (p *IdP) Sign(claims jwt.Claims) string {
	tok, err := p.Signer.Sign(claims)
	require.NoError(p.TB, err)
	return tok
}

// AccessToken issues a valid access token for clientID.
func (p *IdP) AccessToken(clientID string) string {
	p.mu.Lock()
	p.seq++
	n := p.seq
	p.mu.Unlock()

	tok := p.Sign(&jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.URL(),
			Subject:   p.Subject,
			ID:        fmt.Sprintf("at-%d", n),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ClientID: clientID,
		Scope:    "openid offline_access",
	})

	p.mu.Lock()
	p.validAccess[tok] = true
	p.mu.Unlock()
	return tok
}

// RefreshToken issues a refresh token. It carries sid, which is how stored
// sessions tell it apart from other tokens.
func (p *IdP) RefreshToken() string {
	p.mu.Lock()
	p.seq++
	n := p.seq
	p.mu.Unlock()

	return p.Sign(&jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.URL(),
			Subject:   p.Subject,
			ID:        fmt.Sprintf("rt-%d", n),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
		},
		SID:    fmt.Sprintf("sid-%d", n),
		UserID: DefaultLegacyID,
	})
}

// Tokens issues a complete, valid token set.
func (p *IdP) Tokens(nonce string) domain.UserTokens {
	idToken := p.IDToken(nonce, nil)
	claims, err := jwtx.ParseUnverified(idToken)
	require.NoError(p.TB, err)

	return domain.UserTokens{
		AccessToken:  p.AccessToken(p.ClientID),
		RefreshToken: p.RefreshToken(),
		IDToken:      idToken,
		IDTokenClaims: domain.IDTokenClaims{
			Iss:    claims.Issuer,
			Sub:    claims.Subject,
			UserID: claims.LegacyUserID,
			Aud:    []string(claims.Audience),
			Exp:    claims.ExpiresAtUnix(),
			Nonce:  claims.Nonce,
		},
	}
}

func (p *IdP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	p.JWKSCalls.Add(1)
	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(p.Signer); err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keys.PublicJWKS())
}

func (p *IdP) handleToken(w http.ResponseWriter, r *http.Request) {
	p.TokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.exchangeCode(w, r)
	case "refresh_token":
		p.refresh(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (p *IdP) exchangeCode(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")

	p.mu.Lock()
	grant, ok := p.grants[code]
	delete(p.grants, code)
	p.mu.Unlock()

	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown authorization code")
		return
	}

	clientID := r.PostForm.Get("client_id")
	resp := map[string]any{
		"access_token":  p.AccessToken(clientID),
		"refresh_token": p.RefreshToken(),
		"scope":         "openid offline_access",
		"expires_in":    3600,
	}
	if !p.OmitIDToken {
		resp["id_token"] = p.IDToken(grant.Nonce, grant.AMR)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *IdP) refresh(w http.ResponseWriter, r *http.Request) {
	p.RefreshCalls.Add(1)

	p.mu.Lock()
	hook := p.refreshHook
	revoked := p.revoked[r.PostForm.Get("refresh_token")]
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if status := int(p.RefreshStatus.Load()); status != 0 {
		writeOAuthError(w, status, "server_error", "refresh unavailable")
		return
	}
	if revoked {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token revoked")
		return
	}

	clientID := r.PostForm.Get("client_id")
	if user, _, ok := r.BasicAuth(); ok {
		clientID = user
	}

	resp := map[string]any{
		"access_token": p.AccessToken(clientID),
		"expires_in":   3600,
	}
	if p.RotateRefreshTokens {
		resp["refresh_token"] = p.RefreshToken()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *IdP) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		p.mu.Lock()
		valid := ok && p.validAccess[tok] && !p.RejectAccess.Load()
		p.mu.Unlock()

		if !valid {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *IdP) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"uuid":        chi.URLParam(r, "userID"),
		"userId":      DefaultLegacyID,
		"email":       "user@example.com",
		"displayName": "Test User",
		"name":        map[string]string{"givenName": "Test", "familyName": "User"},
		"birthday":    "0000-00-00",
		"addresses":   []any{},
	}})
}

func (p *IdP) handleExchange(w http.ResponseWriter, r *http.Request) {
	p.ExchangeCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	switch r.PostForm.Get("type") {
	case "session":
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": "session-code"}})
	case "code":
		code := p.Authorize(Grant{})
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": code}})
	default:
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "unknown exchange type")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, domain.OAuthError{Code: code, Description: description})
}
