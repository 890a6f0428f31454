package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// IDTokenClaims are the validated ID token claims we keep with a session.
type IDTokenClaims struct {
	Iss    string   `json:"iss"`
	Sub    string   `json:"sub"`
	UserID string   `json:"userId"` // legacy numeric user id
	Aud    []string `json:"aud"`
	Exp    int64    `json:"exp"` // seconds since epoch
	Nonce  string   `json:"nonce,omitempty"`
	AMR    []string `json:"amr,omitempty"`
}

func (c IDTokenClaims) Equal(o IDTokenClaims) bool {
	return c.Iss == o.Iss && c.Sub == o.Sub && c.UserID == o.UserID &&
		slices.Equal(c.Aud, o.Aud) && c.Exp == o.Exp && c.Nonce == o.Nonce &&
		slices.Equal(c.AMR, o.AMR)
}

// UserTokens is the token set for one logged-in user.
type UserTokens struct {
	AccessToken   string        `json:"accessToken"`
	RefreshToken  string        `json:"refreshToken"` // empty when the server issued none
	IDToken       string        `json:"idToken"`
	IDTokenClaims IDTokenClaims `json:"idTokenClaims"`
}

// String never prints signatures, so tokens can be logged without handing
// out something usable.
func (t UserTokens) String() string {
	return fmt.Sprintf(
		"UserTokens(accessToken: %s, refreshToken: %s, idToken: %s, idTokenClaims: %+v)",
		RemoveJWTSignature(t.AccessToken),
		RemoveJWTSignature(t.RefreshToken),
		RemoveJWTSignature(t.IDToken),
		t.IDTokenClaims,
	)
}

// WithRefreshed returns a copy holding the new access token, and the new
// refresh token if the server rotated it.
func (t UserTokens) WithRefreshed(accessToken, refreshToken string) UserTokens {
	out := t
	out.AccessToken = accessToken
	if refreshToken != "" {
		out.RefreshToken = refreshToken
	}
	return out
}

// Equal reports whether both token sets are identical.
func (t UserTokens) Equal(o UserTokens) bool {
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.IDToken == o.IDToken &&
		t.IDTokenClaims.Equal(o.IDTokenClaims)
}

// UserTokensResult is the outcome of a successful code exchange.
type UserTokensResult struct {
	UserTokens UserTokens
	Scope      string
	ExpiresIn  int
}

// StoredUserSession is the persisted form of a login.
type StoredUserSession struct {
	ClientID   string     `json:"clientId"`
	UserTokens UserTokens `json:"userTokens"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// RemoveJWTSignature drops the signature segment of a JWT. Values that are not
// JWTs are cut down to a three character prefix.
func RemoveJWTSignature(token string) string {
	if token == "" {
		return ""
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return token[:min(3, len(token))]
	}
	return parts[0] + "." + parts[1]
}
