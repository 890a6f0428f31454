package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier checks signatures of RS256 JWTs against a KeySet. It does NOT
// validate claims; ID token rules (issuer normalisation, AMR, nonce) live
// with the caller.
type RS256Verifier struct {
	keys *KeySet
}

// NewVerifierRS256 creates a verifier using a KeySet of RSA public keys.
func NewVerifierRS256(keys *KeySet) *RS256Verifier {
	return &RS256Verifier{keys: keys}
}

// Verify checks the signature and returns the decoded claims. Errors from
// golang-jwt are wrapped so their message survives.
func (v *RS256Verifier) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, v.keyfunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}
	return claims, nil
}

// keyfunc picks the verification key by kid. An unknown kid surfaces as
// ErrUnknownKID so callers can refresh their key set and retry.
func (v *RS256Verifier) keyfunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		// No kid: any key in the set may have signed it
		all := v.keys.All()
		if len(all) == 0 {
			return nil, ErrNoKey
		}
		set := jwt.VerificationKeySet{Keys: make([]jwt.VerificationKey, len(all))}
		for i, k := range all {
			set.Keys[i] = k
		}
		return set, nil
	}

	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownKID, kid, err)
	}
	return pub, nil
}
