package token

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
)

// ValidationContext is what an ID token is checked against.
type ValidationContext struct {
	Issuer      string
	ClientID    string
	Nonce       string // empty skips the nonce check
	ExpectedAMR string // empty skips the amr check
}

// Validator checks ID tokens following OpenID Connect Core 3.1.3.7, with the
// client specific issuer and amr rules.
type Validator struct {
	JWKS JWKSSource
	Now  func() time.Time
}

// Validate is Validator.Validate with the real clock.
func Validate(ctx context.Context, idToken string, jwks JWKSSource, vctx ValidationContext) (*domain.IDTokenClaims, error) {
	return (&Validator{JWKS: jwks}).Validate(ctx, idToken, vctx)
}

// Validate verifies the signature and claims of idToken. The error is always
// a *ValidationError.
func (v *Validator) Validate(ctx context.Context, idToken string, vctx ValidationContext) (*domain.IDTokenClaims, error) {
	keys, err := v.JWKS.Keys(ctx)
	if err != nil {
		return nil, &ValidationError{Kind: ValidationUnexpected, Message: "Failed to fetch JWKS to validate ID Token"}
	}

	claims, err := jwtx.NewVerifierRS256(keys).Verify(idToken)
	if errors.Is(err, jwtx.ErrUnknownKID) {
		// Keys may have rotated since we cached them
		if fresh, rerr := v.JWKS.Refresh(ctx); rerr == nil {
			claims, err = jwtx.NewVerifierRS256(fresh).Verify(idToken)
		}
	}
	if err != nil {
		return nil, failed("%s", err.Error())
	}

	if verr := v.verifyClaims(claims, vctx); verr != nil {
		return nil, verr
	}

	return &domain.IDTokenClaims{
		Iss:    claims.Issuer,
		Sub:    claims.Subject,
		UserID: claims.LegacyUserID,
		Aud:    []string(claims.Audience),
		Exp:    claims.ExpiresAtUnix(),
		Nonce:  claims.Nonce,
		AMR:    claims.AMR,
	}, nil
}

func (v *Validator) verifyClaims(claims *jwtx.Claims, vctx ValidationContext) *ValidationError {
	if missing := claims.MissingRequired(); len(missing) > 0 {
		return failed("JWT missing required claims: [%s]", strings.Join(missing, ", "))
	}

	if err := claims.ValidateAudience(vctx.ClientID); err != nil {
		return failed("JWT audience rejected: [%s]", strings.Join(claims.Audience, ", "))
	}

	if err := claims.ValidateExpiry(v.now()); err != nil {
		return failed("Expired JWT")
	}

	if err := claims.ValidateIssuer(vctx.Issuer); err != nil {
		return failed("Invalid issuer '%s'", claims.Issuer)
	}

	if vctx.ExpectedAMR != "" && !containsAMR(claims.AMR, vctx.ExpectedAMR) {
		return failed("Missing expected AMR value: %s", vctx.ExpectedAMR)
	}

	if vctx.Nonce != "" && claims.Nonce != vctx.Nonce {
		return failed(`JWT "nonce" claim has value %s, must be %s`, nonceString(claims.Nonce), vctx.Nonce)
	}

	return nil
}

// containsAMR reports whether want is in values. An eid-<country> value is
// also satisfied by a plain "eid".
func containsAMR(values []string, want string) bool {
	if slices.Contains(values, want) {
		return true
	}
	if strings.HasPrefix(want, string(domain.MfaEID)+"-") {
		return slices.Contains(values, string(domain.MfaEID))
	}
	return false
}

func nonceString(n string) string {
	if n == "" {
		return "null"
	}
	return n
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// String helps when logging a context.
func (c ValidationContext) String() string {
	return fmt.Sprintf("ValidationContext(issuer: %s, clientId: %s, nonce: %s, expectedAmr: %s)",
		c.Issuer, c.ClientID, c.Nonce, c.ExpectedAMR)
}
