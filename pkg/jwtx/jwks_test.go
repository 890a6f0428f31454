package jwtx

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWK_PEM_RSA(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := NewRSAJWK("test-key-id", "sig", "RS256", &privateKey.PublicKey)

	pemStr, err := jwk.PEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

	block, _ := pem.Decode([]byte(pemStr))
	require.NotNil(t, block, "PEM block should be valid")

	parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	rsaPubKey, ok := parsedKey.(*rsa.PublicKey)
	require.True(t, ok, "Parsed key should be an RSA public key")
	require.Equal(t, privateKey.PublicKey.N, rsaPubKey.N)
	require.Equal(t, privateKey.PublicKey.E, rsaPubKey.E)
}

func TestJWK_PEM_UnsupportedKeyType(t *testing.T) {
	_, err := JWK{Kty: "EC", Kid: "test-key"}.PEM()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported kty")
}

func TestJWK_PEM_InvalidBase64(t *testing.T) {
	_, err := JWK{Kty: "RSA", N: "!!!invalid-base64!!!", E: "AQAB"}.PEM()
	require.Error(t, err)
}

func TestKeySet_ResetFromJWKS(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// What a real provider publishes, with an EC key and an encryption key
	// mixed in that we have to step over.
	raw := `{"keys":[
		{"kty":"EC","kid":"ec","crv":"P-256","x":"abc","y":"def"},
		{"kty":"RSA","kid":"enc","use":"enc","n":"AQAB","e":"AQAB"}
	]}`
	var jwks JWKS
	require.NoError(t, json.Unmarshal([]byte(raw), &jwks))
	jwks.Keys = append(jwks.Keys, NewRSAJWK("sig1", "sig", "RS256", &privateKey.PublicKey))

	ks := NewKeySet()
	require.NoError(t, ks.ResetFromJWKS(jwks))
	require.Equal(t, 1, ks.Len())

	got, err := ks.Get("sig1")
	require.NoError(t, err)
	require.Equal(t, privateKey.PublicKey.N, got.N)

	_, err = ks.Get("enc")
	require.ErrorIs(t, err, ErrNoKey)

	require.ErrorIs(t, ks.ResetFromJWKS(JWKS{}), ErrNoKey)
	require.Zero(t, ks.Len())
}

func TestKeySetFromJWKS(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ks, err := KeySetFromJWKS(JWKS{Keys: []JWK{
		{Kty: "RSA", Kid: "enc", Use: "enc", N: "AQAB", E: "AQAB"},
		NewRSAJWK("sig1", "sig", "RS256", &privateKey.PublicKey),
	}})
	require.NoError(t, err)
	require.Equal(t, 1, ks.Len())
	require.Equal(t, "sig1", ks.PublicJWKS().Keys[0].Kid)

	_, err = KeySetFromJWKS(JWKS{Keys: []JWK{{Kty: "RSA", Kid: "enc", Use: "enc", N: "AQAB", E: "AQAB"}}})
	require.ErrorIs(t, err, ErrNoKey)
}
