package jwtx

import "github.com/golang-jwt/jwt/v5"

// Signer is our interface for anything that can sign JWTs. The SDK itself
// never signs; local identity providers and test fixtures do.
type Signer interface {
	Alg() string
	KID() string
	Sign(jwt.Claims) (string, error)
	PublicJWK() JWK
}

// NewSignerRS256 creates an RS256 signer from PEM bytes.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newRS256Signer(kid, pemKey)
}
