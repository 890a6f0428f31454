package cryptox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNoMasterKey is returned when a provider has nothing configured.
var ErrNoMasterKey = errors.New("cryptox: master key not configured")

// MasterKeyProvider supplies the raw master key material that data keys are
// wrapped with. Callers should run it through DeriveKey before use.
type MasterKeyProvider interface {
	MasterKey(ctx context.Context) ([]byte, error)
}

// StaticProvider returns fixed key material. Handy in tests.
type StaticProvider []byte

func (p StaticProvider) MasterKey(context.Context) ([]byte, error) {
	if len(p) == 0 {
		return nil, ErrNoMasterKey
	}
	return []byte(p), nil
}

// EnvProvider reads key material from an environment variable.
type EnvProvider struct {
	Var string
}

func (p EnvProvider) MasterKey(context.Context) ([]byte, error) {
	v := os.Getenv(p.Var)
	if v == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoMasterKey, p.Var)
	}
	return []byte(v), nil
}

// FileProvider reads key material from a file. Surrounding whitespace is
// trimmed so a trailing newline doesn't change the key.
type FileProvider struct {
	Path string
}

func (p FileProvider) MasterKey(context.Context) ([]byte, error) {
	if p.Path == "" {
		return nil, ErrNoMasterKey
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master key file: %w", err)
	}

	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoMasterKey, p.Path)
	}
	return data, nil
}

// KeyringProvider keeps the master key in the OS keyring (Keychain, Secret
// Service, Windows Credential Manager). A key is generated and stored on
// first use.
type KeyringProvider struct {
	Service string
	User    string
}

func (p KeyringProvider) MasterKey(context.Context) ([]byte, error) {
	secret, err := keyring.Get(p.Service, p.User)
	if err == nil {
		return []byte(secret), nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("failed to read master key from keyring: %w", err)
	}

	secret, err = GenerateToken(MasterKeySize)
	if err != nil {
		return nil, err
	}
	if err := keyring.Set(p.Service, p.User, secret); err != nil {
		return nil, fmt.Errorf("failed to store master key in keyring: %w", err)
	}
	return []byte(secret), nil
}

// Forget removes the stored key. The next MasterKey call generates a new one,
// which makes everything sealed under the old key unreadable.
func (p KeyringProvider) Forget() error {
	err := keyring.Delete(p.Service, p.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete master key from keyring: %w", err)
	}
	return nil
}
