package jwtx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")

	ErrIssuer   = errors.New("jwtx: issuer mismatch")
	ErrAudience = errors.New("jwtx: audience mismatch")
	ErrExpired  = errors.New("jwtx: token expired")
)

// LooksLikeJWT reports whether s has the three dot-separated segments of a
// compact JWS. It says nothing about whether the segments decode.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}

// ParseUnverified decodes token claims WITHOUT checking the signature. Only
// use it on tokens we already hold, to read metadata we stored alongside.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

// UnverifiedPayload decodes the payload into a generic map, for callers that
// care which claims are present rather than their values.
func UnverifiedPayload(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}
