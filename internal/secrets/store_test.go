package secrets

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(ring keyring.Keyring) *Store {
	return &Store{
		backend: KeyringBackendInfo{Value: "file", Source: keyringBackendSourceConfig},
		open:    func() (keyring.Keyring, error) { return ring, nil },
	}
}

func TestMailPasswordRoundTrip(t *testing.T) {
	store := newTestStore(keyring.NewArrayKeyring(nil))

	require.NoError(t, store.SetMailPassword(" Relay@Example.com ", "hunter2"))

	password, err := store.MailPassword("relay@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)
}

func TestBotTokenRoundTrip(t *testing.T) {
	store := newTestStore(keyring.NewArrayKeyring(nil))

	_, err := store.BotToken()
	require.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, store.SetBotToken("123:abc"))
	token, err := store.BotToken()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", token)
}

func TestMissingArguments(t *testing.T) {
	store := newTestStore(keyring.NewArrayKeyring(nil))

	assert.ErrorIs(t, store.SetMailPassword("", "p"), errMissingUsername)
	assert.ErrorIs(t, store.SetMailPassword("u", ""), errMissingValue)
	assert.ErrorIs(t, store.SetBotToken("  "), errMissingValue)
	_, err := store.MailPassword("")
	assert.ErrorIs(t, err, errMissingUsername)
}

func TestOpenFailureIsReturned(t *testing.T) {
	boom := errors.New("keyring unavailable")
	store := &Store{open: func() (keyring.Keyring, error) { return nil, boom }}

	_, err := store.BotToken()

	assert.ErrorIs(t, err, boom)
}

func TestResolveKeyringBackendInfo(t *testing.T) {
	t.Setenv(keyringBackendEnv, "")
	assert.Equal(t, KeyringBackendInfo{Value: "auto", Source: "default"}, ResolveKeyringBackendInfo(""))
	assert.Equal(t, KeyringBackendInfo{Value: "file", Source: "config"}, ResolveKeyringBackendInfo(" File "))

	t.Setenv(keyringBackendEnv, "keychain")
	assert.Equal(t, KeyringBackendInfo{Value: "keychain", Source: "env"}, ResolveKeyringBackendInfo("file"))
}

func TestAllowedBackends(t *testing.T) {
	backends, err := allowedBackends(KeyringBackendInfo{Value: "auto"})
	require.NoError(t, err)
	assert.Nil(t, backends)

	backends, err = allowedBackends(KeyringBackendInfo{Value: "file"})
	require.NoError(t, err)
	assert.Equal(t, []keyring.BackendType{keyring.FileBackend}, backends)

	_, err = allowedBackends(KeyringBackendInfo{Value: "vault"})
	assert.ErrorIs(t, err, errInvalidKeyringBackend)
}

func TestFileKeyringPasswordFuncFrom(t *testing.T) {
	password, err := fileKeyringPasswordFuncFrom("", true, false)("prompt")
	require.NoError(t, err)
	assert.Empty(t, password)

	_, err = fileKeyringPasswordFuncFrom("", false, false)("prompt")
	assert.ErrorIs(t, err, errNoTTY)
}

func TestBackendSelectionOnLinux(t *testing.T) {
	auto := KeyringBackendInfo{Value: keyringBackendAuto}

	assert.True(t, shouldForceFileBackend("linux", auto, ""))
	assert.False(t, shouldForceFileBackend("darwin", auto, ""))
	assert.True(t, shouldUseKeyringTimeout("linux", auto, "unix:path=/run/bus"))
	assert.False(t, shouldUseKeyringTimeout("linux", KeyringBackendInfo{Value: "file"}, "unix:path=/run/bus"))
}
