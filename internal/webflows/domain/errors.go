package domain

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// HTTPError - transport level failures
// ============================================================================

// HTTPError is either an error response from the server (StatusCode and Body
// set) or an unexpected failure such as a network error or undecodable body
// (Err set).
type HTTPError struct {
	StatusCode int
	Body       string
	Err        error
}

// NewErrorResponse builds an HTTPError for a non-2xx response.
func NewErrorResponse(code int, body string) *HTTPError {
	return &HTTPError{StatusCode: code, Body: body}
}

// NewUnexpectedError wraps anything that isn't an error response.
func NewUnexpectedError(err error) *HTTPError {
	return &HTTPError{Err: err}
}

// IsErrorResponse distinguishes server error responses from other failures.
func (e *HTTPError) IsErrorResponse() bool { return e.Err == nil }

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected http error: %v", e.Err)
	}
	return fmt.Sprintf("error response %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// OAuthError parses the body as an OAuth error, if it is one.
func (e *HTTPError) OAuthError() (*OAuthError, bool) {
	if !e.IsErrorResponse() {
		return nil, false
	}
	return ParseOAuthError(e.Body)
}

// ============================================================================
// OAuthError - RFC 6749 error responses
// ============================================================================

const (
	ErrorCodeInvalidGrant = "invalid_grant"
	ErrorCodeAccessDenied = "access_denied"
)

// OAuthError is an OAuth2 error as returned in a redirect or a token
// response body.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ParseOAuthError decodes a JSON error body. Bodies without an "error"
// member are not OAuth errors.
func ParseOAuthError(body string) (*OAuthError, bool) {
	var oe OAuthError
	if err := json.Unmarshal([]byte(body), &oe); err != nil || oe.Code == "" {
		return nil, false
	}
	return &oe, true
}
