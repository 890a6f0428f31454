package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/app"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WEBFLOWS_CONFIG", "")
	t.Setenv("WEBFLOWS_CLIENT_ID", "client1")
	t.Setenv("WEBFLOWS_REDIRECT_URI", "http://127.0.0.1:8765/callback")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "webflows.db", cfg.DatabaseFile)
	require.Equal(t, app.MasterKeyKeyring, cfg.MasterKeySource)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)

	cc, err := cfg.ClientConfiguration()
	require.NoError(t, err)
	require.Equal(t, string(domain.EnvironmentPre), cc.ServerURL.String())
	require.Equal(t, "client1", cc.ClientID)

	require.IsType(t, cryptox.KeyringProvider{}, cfg.MasterKeyProvider())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBFLOWS_ENV", "pro_no")
	t.Setenv("WEBFLOWS_SKIP_LEGACY_MIGRATION", "true")
	t.Setenv("WEBFLOWS_MASTER_KEY_SOURCE", "env")
	t.Setenv("WEBFLOWS_KEY_LIFETIME", "720h")
	t.Setenv("HOUSEKEEPING_INTERVAL", "30")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.SkipLegacySessionMigration)
	require.Equal(t, 720*time.Hour, cfg.KeyLifetime)
	require.Equal(t, 30*time.Minute, cfg.HousekeepingInterval, "bare integers are minutes")
	require.Equal(t, cryptox.EnvProvider{Var: "WEBFLOWS_MASTER_KEY"}, cfg.MasterKeyProvider())

	cc, err := cfg.ClientConfiguration()
	require.NoError(t, err)
	require.Equal(t, string(domain.EnvironmentProNO), cc.ServerURL.String())
	require.True(t, cc.SkipLegacySessionMigration)

	// An explicit server URL wins over the environment name
	t.Setenv("WEBFLOWS_SERVER_URL", "https://idp.example.com")
	cfg, err = app.LoadConfig()
	require.NoError(t, err)
	cc, err = cfg.ClientConfiguration()
	require.NoError(t, err)
	require.Equal(t, "https://idp.example.com", cc.ServerURL.String())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBFLOWS_CLIENT_ID", "")

	path := filepath.Join(t.TempDir(), "webflows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client_id: from-file
environment: pro_fi
master_key_source: file
master_key_path: /etc/webflows/key
key_rotate_before: 48h
log_level: debug
`), 0o600))
	t.Setenv("WEBFLOWS_CONFIG", path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.ClientID)
	require.Equal(t, 48*time.Hour, cfg.KeyRotateBefore)
	require.Equal(t, "error", cfg.LogLevel, "env overrides the file")
	require.Equal(t, cryptox.FileProvider{Path: "/etc/webflows/key"}, cfg.MasterKeyProvider())

	t.Run("unknown field", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("client_id: from-file\nclient_idd: typo\n"), 0o600))
		_, err := app.LoadConfig()
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("WEBFLOWS_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := app.LoadConfig()
		require.Error(t, err)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing client id", env: map[string]string{"WEBFLOWS_CLIENT_ID": ""}},
		{name: "missing redirect uri", env: map[string]string{"WEBFLOWS_REDIRECT_URI": ""}},
		{name: "unknown environment", env: map[string]string{"WEBFLOWS_ENV": "staging"}},
		{name: "relative server url", env: map[string]string{"WEBFLOWS_SERVER_URL": "idp.example.com"}},
		{name: "unknown master key source", env: map[string]string{"WEBFLOWS_MASTER_KEY_SOURCE": "vault"}},
		{name: "file source without path", env: map[string]string{"WEBFLOWS_MASTER_KEY_SOURCE": "file"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := app.LoadConfig()
			require.Error(t, err)
		})
	}
}
