package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"

	"gopkg.in/yaml.v3"
)

// Master key sources.
const (
	MasterKeyKeyring = "keyring"
	MasterKeyEnv     = "env"
	MasterKeyFile    = "file"
)

const (
	keyringService = "webflows"
	masterKeyEnv   = "WEBFLOWS_MASTER_KEY"
)

type Config struct {
	ServerURL   string `yaml:"server_url"`   // Optional: identity provider base URL, wins over Environment
	Environment string `yaml:"environment"`  // Optional: pre, pro_com, pro_no, pro_fi (default: pre)
	ClientID    string `yaml:"client_id"`    // Required
	RedirectURI string `yaml:"redirect_uri"` // Required: must be a loopback http URL for the CLI

	LegacyClientID             string `yaml:"legacy_client_id"`              // Optional: enables legacy session migration
	LegacyClientSecret         string `yaml:"legacy_client_secret"`          // Optional
	SkipLegacySessionMigration bool   `yaml:"skip_legacy_session_migration"` // Optional (default: false)

	DatabaseFile    string `yaml:"database_file"`     // Optional: path to SQLite database file (default: ./webflows.db)
	MasterKeySource string `yaml:"master_key_source"` // Optional: keyring, env, file (default: keyring)
	MasterKeyPath   string `yaml:"master_key_path"`   // Optional: key file for the file source

	KeyLifetime          time.Duration `yaml:"key_lifetime"`          // Optional: data key lifetime (default: 90 days)
	KeyRotateBefore      time.Duration `yaml:"key_rotate_before"`     // Optional: rotate this long before expiry (default: 7 days)
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // Optional: key purge interval (default: 1h)

	Env       string `yaml:"env"`        // Environment (dev, prod) (default: prod)
	LogLevel  string `yaml:"log_level"`  // Log level (debug, info, warn, error) (default: warn)
	LogFormat string `yaml:"log_format"` // Log format (json, text) (default: text)
}

func defaultConfig() Config {
	return Config{
		Environment:          "pre",
		DatabaseFile:         "webflows.db",
		MasterKeySource:      MasterKeyKeyring,
		KeyLifetime:          store.DefaultKeyLifetime,
		KeyRotateBefore:      store.DefaultRotateBefore,
		HousekeepingInterval: store.DefaultHousekeepingInterval,
		Env:                  "prod",
		LogLevel:             "warn",
		LogFormat:            "text",
	}
}

// LoadConfig reads the YAML file named by WEBFLOWS_CONFIG, if any, then
// applies environment overrides and validates the result.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("WEBFLOWS_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ServerURL = getEnvOrDefault("WEBFLOWS_SERVER_URL", cfg.ServerURL)
	cfg.Environment = getEnvOrDefault("WEBFLOWS_ENV", cfg.Environment)
	cfg.ClientID = getEnvOrDefault("WEBFLOWS_CLIENT_ID", cfg.ClientID)
	cfg.RedirectURI = getEnvOrDefault("WEBFLOWS_REDIRECT_URI", cfg.RedirectURI)
	cfg.LegacyClientID = getEnvOrDefault("WEBFLOWS_LEGACY_CLIENT_ID", cfg.LegacyClientID)
	cfg.LegacyClientSecret = getEnvOrDefault("WEBFLOWS_LEGACY_CLIENT_SECRET", cfg.LegacyClientSecret)
	cfg.SkipLegacySessionMigration = getEnvBoolOrDefault("WEBFLOWS_SKIP_LEGACY_MIGRATION", cfg.SkipLegacySessionMigration)
	cfg.DatabaseFile = getEnvOrDefault("WEBFLOWS_DATABASE_FILE", cfg.DatabaseFile)
	cfg.MasterKeySource = getEnvOrDefault("WEBFLOWS_MASTER_KEY_SOURCE", cfg.MasterKeySource)
	cfg.MasterKeyPath = getEnvOrDefault("WEBFLOWS_MASTER_KEY_PATH", cfg.MasterKeyPath)
	cfg.KeyLifetime = getEnvDurationOrDefault("WEBFLOWS_KEY_LIFETIME", cfg.KeyLifetime)
	cfg.KeyRotateBefore = getEnvDurationOrDefault("WEBFLOWS_KEY_ROTATE_BEFORE", cfg.KeyRotateBefore)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields needed to build a client.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("config: client_id is required (WEBFLOWS_CLIENT_ID)")
	}
	if c.RedirectURI == "" {
		return errors.New("config: redirect_uri is required (WEBFLOWS_REDIRECT_URI)")
	}
	switch c.MasterKeySource {
	case MasterKeyKeyring, MasterKeyEnv:
	case MasterKeyFile:
		if c.MasterKeyPath == "" {
			return errors.New("config: master_key_path is required for the file master key source")
		}
	default:
		return fmt.Errorf("config: unknown master key source %q", c.MasterKeySource)
	}
	if _, err := c.ClientConfiguration(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ClientConfiguration resolves the identity provider and builds the client
// configuration.
func (c Config) ClientConfiguration() (domain.ClientConfiguration, error) {
	serverURL := c.ServerURL
	if serverURL == "" {
		env, err := domain.ParseEnvironment(c.Environment)
		if err != nil {
			return domain.ClientConfiguration{}, err
		}
		serverURL = string(env)
	}

	cfg, err := domain.NewClientConfiguration(serverURL, c.ClientID, c.RedirectURI)
	if err != nil {
		return domain.ClientConfiguration{}, err
	}
	cfg.SkipLegacySessionMigration = c.SkipLegacySessionMigration
	return cfg, nil
}

// MasterKeyProvider returns the provider for MasterKeySource. Keyring entries
// are per client so two apps on one machine don't share keys.
func (c Config) MasterKeyProvider() cryptox.MasterKeyProvider {
	switch c.MasterKeySource {
	case MasterKeyEnv:
		return cryptox.EnvProvider{Var: masterKeyEnv}
	case MasterKeyFile:
		return cryptox.FileProvider{Path: filepath.Clean(c.MasterKeyPath)}
	default:
		return cryptox.KeyringProvider{Service: keyringService, User: c.ClientID}
	}
}

// KeyPolicy is the data key lifecycle for the encrypted store.
func (c Config) KeyPolicy() store.KeyPolicy {
	return store.KeyPolicy{
		Lifetime:     c.KeyLifetime,
		RotateBefore: c.KeyRotateBefore,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
