package domain

import "fmt"

// MfaType is an authentication method the user can be forced through. The
// value is sent as acr_values and expected back in the ID token amr claim.
type MfaType string

const (
	MfaPassword MfaType = "password"
	MfaOTP      MfaType = "otp"
	MfaSMS      MfaType = "sms"
	MfaEIDNO    MfaType = "eid-no"
	MfaEIDSE    MfaType = "eid-se"
	MfaEID      MfaType = "eid"
)

// ParseMfaType validates a raw value.
func ParseMfaType(s string) (MfaType, error) {
	switch m := MfaType(s); m {
	case MfaPassword, MfaOTP, MfaSMS, MfaEIDNO, MfaEIDSE, MfaEID:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mfa type %q", s)
	}
}

// AuthState is what we remember between sending the user to the login page
// and receiving the redirect back. Only one is kept at a time.
type AuthState struct {
	State        string   `json:"state"`
	Nonce        string   `json:"nonce"`
	CodeVerifier string   `json:"codeVerifier"`
	MFA          *MfaType `json:"mfa,omitempty"`
}

// ExpectedAMR is the amr value the ID token must carry, empty for none.
func (s *AuthState) ExpectedAMR() string {
	if s == nil || s.MFA == nil {
		return ""
	}
	return string(*s.MFA)
}

// AuthRequest holds optional login URL parameters.
type AuthRequest struct {
	ExtraScopeValues []string // added to the default openid and offline_access
	MFA              *MfaType // force an authentication method
	LoginHint        string   // prefill the username field
	State            string   // caller-supplied state, generated when empty
}
