package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://issuer.example.com"

func newTestSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privKey),
	})

	signer, err := jwtx.NewSignerRS256(kid, privPEM)
	require.NoError(t, err)
	return signer
}

func TestRS256SignAndVerify(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, "test-key")

	now := time.Now().UTC()
	claims := jwtx.NewIDClaims(
		"user-123",          // subject
		exampleIssuer,       // issuer
		[]string{"client1"}, // audience
		"nonce-abc",         // nonce
		[]string{"pwd"},     // AMR
		"12345",             // legacy user id
		2*time.Minute,       // TTL
		now,                 // issued at time
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	parsed, err := jwtx.NewVerifierRS256(keyset).Verify(token)
	require.NoError(t, err)

	require.Equal(t, claims.Issuer, parsed.Issuer)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.ElementsMatch(t, claims.Audience, parsed.Audience)
	require.ElementsMatch(t, claims.AMR, parsed.AMR)
	require.Equal(t, "nonce-abc", parsed.Nonce)
	require.Equal(t, "12345", parsed.LegacyUserID)
}

func TestRS256VerifyWithoutKid(t *testing.T) {
	t.Parallel()

	other := newTestSigner(t, "other")
	signer := newTestSigner(t, "")

	token, err := signer.Sign(jwtx.NewIDClaims("sub", exampleIssuer, nil, "", nil, "", time.Minute, time.Now()))
	require.NoError(t, err)

	// Both keys in the set, the right one is second
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(other))
	require.NoError(t, keyset.AddSigner(signer))

	parsed, err := jwtx.NewVerifierRS256(keyset).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "sub", parsed.Subject)
}

func TestRS256VerifyFailsForUnknownKey(t *testing.T) {
	t.Parallel()

	signer1 := newTestSigner(t, "key1")
	signer2 := newTestSigner(t, "key2")

	token, err := signer1.Sign(jwtx.NewIDClaims("user-123", exampleIssuer, nil, "", nil, "", time.Minute, time.Now()))
	require.NoError(t, err)

	// Keyset only contains key2
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer2))

	_, err = jwtx.NewVerifierRS256(keyset).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}

func TestRS256VerifySkipsClaimValidation(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, "k")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	// Expired tokens still pass signature checks, claim rules are the caller's job
	expired := jwtx.NewIDClaims("sub", exampleIssuer, nil, "", nil, "", -time.Hour, time.Now())
	token, err := signer.Sign(expired)
	require.NoError(t, err)

	parsed, err := jwtx.NewVerifierRS256(keyset).Verify(token)
	require.NoError(t, err)
	require.ErrorIs(t, parsed.ValidateExpiry(time.Now()), jwtx.ErrExpired)
}

func TestParseUnverified(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, "k")
	token, err := signer.Sign(jwtx.Claims{ClientID: "client1", SID: "session"})
	require.NoError(t, err)
	require.True(t, jwtx.LooksLikeJWT(token))

	claims, err := jwtx.ParseUnverified(token)
	require.NoError(t, err)
	require.Equal(t, "client1", claims.ClientID)

	payload, err := jwtx.UnverifiedPayload(token)
	require.NoError(t, err)
	require.Contains(t, payload, "sid")
	require.NotContains(t, payload, "nonce")

	_, err = jwtx.ParseUnverified("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
	require.False(t, jwtx.LooksLikeJWT("opaque-token"))
}
