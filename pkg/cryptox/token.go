package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Alphanumeric is the alphabet used for OAuth state, nonce and PKCE verifier
// values. It is a strict subset of the RFC 7636 unreserved characters.
const Alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Sizes used for the authorization request values (in characters).
const (
	StateLength        = 10
	NonceLength        = 10
	CodeVerifierLength = 60
)

// MasterKeySize is the byte length of generated master key material.
const MasterKeySize = 32

// RandomString returns n characters drawn uniformly from Alphanumeric using
// crypto/rand.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("string length must be positive, got %d", n)
	}

	max := big.NewInt(int64(len(Alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		out[i] = Alphanumeric[idx.Int64()]
	}
	return string(out), nil
}

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// S256 computes the PKCE S256 code challenge for a verifier:
// BASE64URL(SHA256(verifier)) without padding.
func S256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
