package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIDTokenTTL is what our local identity providers hand out.
const DefaultIDTokenTTL = 15 * time.Minute

// Claims is the union of the claims we read from ID, access and refresh
// tokens. Only the registered claims are universal; the rest depend on the
// token type, which is also how tokens with no other marker are told apart.
type Claims struct {
	jwt.RegisteredClaims

	// Nonce echoes the value sent in the authorization request (ID tokens).
	Nonce string `json:"nonce,omitempty"`

	// Authentication Methods Reference, e.g. ["pwd"], ["otp","pwd"], ["eid"]
	AMR []string `json:"amr,omitempty"`

	// LegacyUserID is the numeric user id of older account systems.
	LegacyUserID string `json:"legacy_user_id,omitempty"`

	// SID only shows up in refresh tokens.
	SID string `json:"sid,omitempty"`

	// UserID is the refresh token spelling of LegacyUserID.
	UserID string `json:"user_id,omitempty"`

	// ClientID is set on access tokens, naming the client they were issued to.
	ClientID string `json:"client_id,omitempty"`

	Scope string `json:"scope,omitempty"`
}

// NewIDClaims builds minimally-correct ID token claims.
func NewIDClaims(
	subject, issuer string,
	audience []string,
	nonce string,
	amr []string,
	legacyUserID string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Nonce:        nonce,
		AMR:          amr,
		LegacyUserID: legacyUserID,
	}
}

// MissingRequired lists which of sub and exp are absent.
func (c *Claims) MissingRequired() []string {
	var missing []string
	if c.ExpiresAt == nil {
		missing = append(missing, "exp")
	}
	if c.Subject == "" {
		missing = append(missing, "sub")
	}
	return missing
}

// ValidateIssuer compares issuers ignoring a single trailing slash on
// either side, since servers disagree on whether to publish one.
func (c *Claims) ValidateIssuer(expected string) error {
	if strings.TrimSuffix(c.Issuer, "/") != strings.TrimSuffix(expected, "/") {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks the audience contains want.
func (c *Claims) ValidateAudience(want string) error {
	if slices.Contains(c.Audience, want) {
		return nil
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired at now.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

// ExpiresAtUnix returns exp in seconds, or 0 if unset.
func (c *Claims) ExpiresAtUnix() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}
