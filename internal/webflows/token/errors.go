package token

import (
	"fmt"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
)

// ============================================================================
// ValidationError
// ============================================================================

type ValidationErrorKind int

const (
	// FailedValidation means the token was checked and rejected.
	FailedValidation ValidationErrorKind = iota + 1
	// ValidationUnexpected means the token could not be checked at all.
	ValidationUnexpected
)

// ValidationError is why an ID token was not accepted. Message is stable and
// safe to show in logs.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	if e.Kind == ValidationUnexpected {
		return "unexpected id token validation error: " + e.Message
	}
	return "id token validation failed: " + e.Message
}

func failed(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: FailedValidation, Message: fmt.Sprintf(format, args...)}
}

// ============================================================================
// TokenError
// ============================================================================

type TokenErrorKind int

const (
	TokenRequestError TokenErrorKind = iota + 1
	IDTokenNotValid
	NoIDTokenReceived
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenRequestError:
		return "token request failed"
	case IDTokenNotValid:
		return "id token not valid"
	case NoIDTokenReceived:
		return "no id token received"
	default:
		return "unknown token error"
	}
}

// TokenError is the outcome of a failed code or refresh token exchange.
// HTTPErr is set for TokenRequestError and ValidationErr for IDTokenNotValid.
type TokenError struct {
	Kind          TokenErrorKind
	HTTPErr       *domain.HTTPError
	ValidationErr *ValidationError
}

// ErrNoIDTokenReceived matches any TokenError of kind NoIDTokenReceived.
var ErrNoIDTokenReceived = &TokenError{Kind: NoIDTokenReceived}

func (e *TokenError) Error() string {
	switch {
	case e.HTTPErr != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.HTTPErr)
	case e.ValidationErr != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.ValidationErr)
	default:
		return e.Kind.String()
	}
}

func (e *TokenError) Unwrap() error {
	switch {
	case e.HTTPErr != nil:
		return e.HTTPErr
	case e.ValidationErr != nil:
		return e.ValidationErr
	default:
		return nil
	}
}

// Is matches on Kind so errors.Is works against the sentinels.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Kind == e.Kind
}
