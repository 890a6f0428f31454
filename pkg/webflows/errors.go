package webflows

import (
	"errors"
	"fmt"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
)

var (
	// ErrUserLoggedOut is returned by User methods once the user has logged
	// out, explicitly or because the refresh token was rejected.
	ErrUserLoggedOut = errors.New("webflows: user is logged out")

	// ErrObserverAlreadyInitialized is returned when a second
	// AuthResultObserver is created for a client that still has one.
	ErrObserverAlreadyInitialized = errors.New("webflows: auth result observer already initialized")
)

// ============================================================================
// LoginError
// ============================================================================

type LoginErrorKind int

const (
	// AuthStateReadError means no pending login was found, or it could not
	// be read.
	AuthStateReadError LoginErrorKind = iota + 1
	// UnsolicitedResponse means the response state doesn't match the pending
	// login.
	UnsolicitedResponse
	// CancelledByUser means the user backed out of an eID login.
	CancelledByUser
	// AuthenticationErrorResponse is an OAuth error in the redirect.
	AuthenticationErrorResponse
	// TokenErrorResponse is an OAuth error from the token endpoint.
	TokenErrorResponse
	// UnexpectedError is anything else.
	UnexpectedError
)

func (k LoginErrorKind) String() string {
	switch k {
	case AuthStateReadError:
		return "AuthStateReadError"
	case UnsolicitedResponse:
		return "UnsolicitedResponse"
	case CancelledByUser:
		return "CancelledByUser"
	case AuthenticationErrorResponse:
		return "AuthenticationErrorResponse"
	case TokenErrorResponse:
		return "TokenErrorResponse"
	case UnexpectedError:
		return "UnexpectedError"
	default:
		return fmt.Sprintf("LoginErrorKind(%d)", int(k))
	}
}

// LoginError is the only error type HandleAuthenticationResponse returns.
// OAuth is set for the two error response kinds, Message for
// UnexpectedError.
type LoginError struct {
	Kind    LoginErrorKind
	OAuth   *domain.OAuthError
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	switch {
	case e.OAuth != nil:
		return fmt.Sprintf("login failed: %s: %s", e.Kind, e.OAuth)
	case e.Message != "":
		return fmt.Sprintf("login failed: %s: %s", e.Kind, e.Message)
	default:
		return "login failed: " + e.Kind.String()
	}
}

func (e *LoginError) Unwrap() error { return e.Err }

// Is matches any LoginError of the same kind, so the sentinels below work
// with errors.Is.
func (e *LoginError) Is(target error) bool {
	t, ok := target.(*LoginError)
	return ok && t.Kind == e.Kind
}

var (
	ErrAuthStateRead       = &LoginError{Kind: AuthStateReadError}
	ErrUnsolicitedResponse = &LoginError{Kind: UnsolicitedResponse}
	ErrCancelledByUser     = &LoginError{Kind: CancelledByUser}
	ErrAuthenticationError = &LoginError{Kind: AuthenticationErrorResponse}
	ErrTokenErrorResponse  = &LoginError{Kind: TokenErrorResponse}
	ErrUnexpectedLogin     = &LoginError{Kind: UnexpectedError}
)

func unexpectedLoginError(message string) *LoginError {
	return &LoginError{Kind: UnexpectedError, Message: message}
}

// ============================================================================
// RefreshTokenError
// ============================================================================

type RefreshTokenErrorKind int

const (
	NoRefreshToken RefreshTokenErrorKind = iota + 1
	ConcurrentRefreshFailure
	// UserWasLoggedOut means the refresh token was rejected and the user has
	// been logged out as a consequence.
	UserWasLoggedOut
	RefreshRequestFailed
	UnexpectedRefreshError
)

func (k RefreshTokenErrorKind) String() string {
	switch k {
	case NoRefreshToken:
		return "NoRefreshToken"
	case ConcurrentRefreshFailure:
		return "ConcurrentRefreshFailure"
	case UserWasLoggedOut:
		return "UserWasLoggedOut"
	case RefreshRequestFailed:
		return "RefreshRequestFailed"
	case UnexpectedRefreshError:
		return "UnexpectedError"
	default:
		return fmt.Sprintf("RefreshTokenErrorKind(%d)", int(k))
	}
}

// RefreshTokenError reports why a token refresh didn't produce new tokens.
// Cause is set for RefreshRequestFailed.
type RefreshTokenError struct {
	Kind    RefreshTokenErrorKind
	Cause   *domain.HTTPError
	Message string
}

func (e *RefreshTokenError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("token refresh failed: %s: %v", e.Kind, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("token refresh failed: %s: %s", e.Kind, e.Message)
	default:
		return "token refresh failed: " + e.Kind.String()
	}
}

func (e *RefreshTokenError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

func (e *RefreshTokenError) Is(target error) bool {
	t, ok := target.(*RefreshTokenError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoRefreshToken           = &RefreshTokenError{Kind: NoRefreshToken}
	ErrConcurrentRefreshFailure = &RefreshTokenError{Kind: ConcurrentRefreshFailure}
	ErrUserWasLoggedOut         = &RefreshTokenError{Kind: UserWasLoggedOut}
	ErrRefreshRequestFailed     = &RefreshTokenError{Kind: RefreshRequestFailed}
)

// invalidGrant reports whether err is a refresh rejected with invalid_grant,
// meaning the refresh token is no longer any good.
func invalidGrant(err error) bool {
	var rerr *RefreshTokenError
	if !errors.As(err, &rerr) || rerr.Kind != RefreshRequestFailed || rerr.Cause == nil {
		return false
	}
	oe, ok := rerr.Cause.OAuthError()
	return ok && oe.Code == domain.ErrorCodeInvalidGrant
}
