package cryptox_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	key, err := cryptox.NewKey()
	require.NoError(t, err)

	plaintext := []byte(`{"clientId":"client1"}`)
	aad := []byte("sessions/client1")

	sealed1, err := cryptox.Seal(key, plaintext, aad)
	require.NoError(t, err)
	sealed2, err := cryptox.Seal(key, plaintext, aad)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "random nonce should make ciphertexts differ")

	opened, err := cryptox.Open(key, sealed1, aad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)

	t.Run("wrong additional data", func(t *testing.T) {
		_, err := cryptox.Open(key, sealed1, []byte("sessions/other"))
		require.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), sealed1...)
		tampered[len(tampered)-1] ^= 0xFF
		_, err := cryptox.Open(key, tampered, aad)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := cryptox.Open(key, []byte("short"), aad)
		require.ErrorIs(t, err, cryptox.ErrCiphertextTooShort)
	})

	t.Run("bad key size", func(t *testing.T) {
		_, err := cryptox.Seal([]byte("short"), plaintext, nil)
		require.ErrorIs(t, err, cryptox.ErrInvalidKeySize)
	})
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	a, err := cryptox.DeriveKey([]byte("material"), []byte("kek"))
	require.NoError(t, err)
	require.Len(t, a, cryptox.KeySize)

	b, err := cryptox.DeriveKey([]byte("material"), []byte("kek"))
	require.NoError(t, err)
	require.Equal(t, a, b, "derivation should be deterministic")

	c, err := cryptox.DeriveKey([]byte("material"), []byte("other"))
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	_, err = cryptox.DeriveKey(nil, nil)
	require.Error(t, err)
}

func TestMasterKeyProviders(t *testing.T) {
	ctx := context.Background()

	t.Run("static", func(t *testing.T) {
		k, err := cryptox.StaticProvider("abc").MasterKey(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), k)

		_, err = cryptox.StaticProvider(nil).MasterKey(ctx)
		require.ErrorIs(t, err, cryptox.ErrNoMasterKey)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("WEBFLOWS_TEST_MASTER_KEY", "from-env")
		k, err := cryptox.EnvProvider{Var: "WEBFLOWS_TEST_MASTER_KEY"}.MasterKey(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("from-env"), k)

		_, err = cryptox.EnvProvider{Var: "WEBFLOWS_TEST_MASTER_KEY_UNSET"}.MasterKey(ctx)
		require.ErrorIs(t, err, cryptox.ErrNoMasterKey)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("file-key\n"), 0o600))

		k, err := cryptox.FileProvider{Path: path}.MasterKey(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("file-key"), k)

		_, err = cryptox.FileProvider{Path: filepath.Join(t.TempDir(), "missing")}.MasterKey(ctx)
		require.Error(t, err)
	})

	t.Run("keyring", func(t *testing.T) {
		keyring.MockInit()
		p := cryptox.KeyringProvider{Service: "webflows-test", User: "master"}

		first, err := p.MasterKey(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, first)

		// Second read must return the persisted key, not a fresh one
		again, err := p.MasterKey(ctx)
		require.NoError(t, err)
		require.Equal(t, first, again)

		require.NoError(t, p.Forget())
		fresh, err := p.MasterKey(ctx)
		require.NoError(t, err)
		require.NotEqual(t, first, fresh)
	})
}
