package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Environment is a known Schibsted account deployment.
type Environment string

const (
	EnvironmentProCOM Environment = "https://login.schibsted.com"
	EnvironmentProNO  Environment = "https://payment.schibsted.no"
	EnvironmentProFI  Environment = "https://login.schibsted.fi"
	EnvironmentPre    Environment = "https://identity-pre.schibsted.com"
)

// environmentNames maps short config names to deployments.
var environmentNames = map[string]Environment{
	"pro_com": EnvironmentProCOM,
	"pro":     EnvironmentProCOM,
	"pro_no":  EnvironmentProNO,
	"pro_fi":  EnvironmentProFI,
	"pre":     EnvironmentPre,
}

// ParseEnvironment resolves a short name like "pre" or "pro_no".
func ParseEnvironment(name string) (Environment, error) {
	env, ok := environmentNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown environment %q", name)
	}
	return env, nil
}

// ClientConfiguration identifies this client to the identity provider.
type ClientConfiguration struct {
	ServerURL                  *url.URL // identity provider base, also the expected issuer
	ClientID                   string
	RedirectURI                string
	SkipLegacySessionMigration bool // don't look for sessions written by the legacy SDK
}

// NewClientConfiguration validates and builds a configuration.
func NewClientConfiguration(serverURL, clientID, redirectURI string) (ClientConfiguration, error) {
	if clientID == "" {
		return ClientConfiguration{}, errors.New("client id is required")
	}
	if redirectURI == "" {
		return ClientConfiguration{}, errors.New("redirect uri is required")
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return ClientConfiguration{}, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return ClientConfiguration{}, fmt.Errorf("invalid server url %q: must be absolute", serverURL)
	}

	return ClientConfiguration{
		ServerURL:   u,
		ClientID:    clientID,
		RedirectURI: redirectURI,
	}, nil
}

// NewClientConfigurationForEnvironment is NewClientConfiguration for a known
// deployment.
func NewClientConfigurationForEnvironment(env Environment, clientID, redirectURI string) (ClientConfiguration, error) {
	return NewClientConfiguration(string(env), clientID, redirectURI)
}

// Issuer is the expected "iss" of ID tokens.
func (c ClientConfiguration) Issuer() string {
	return c.ServerURL.String()
}

// Endpoint resolves path against the server URL.
func (c ClientConfiguration) Endpoint(path string) string {
	return strings.TrimSuffix(c.ServerURL.String(), "/") + path
}
