// Package secrets keeps the mail password and the bot token in the system
// keyring so they need not live in the settings file.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"mailrelay/internal/config"
)

const (
	keyringPasswordEnv = "MAILRELAY_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential
	keyringBackendEnv  = "MAILRELAY_KEYRING_BACKEND"  //nolint:gosec // env var name, not a credential

	botTokenKey = "bot:token" //nolint:gosec // keyring key, not a credential
)

var (
	ErrSecretNotFound        = errors.New("secret not found")
	errMissingSecretKey      = errors.New("missing secret key")
	errMissingUsername       = errors.New("missing username")
	errMissingValue          = errors.New("missing secret value")
	errNoTTY                 = errors.New("no TTY available for keyring file backend password prompt")
	errInvalidKeyringBackend = errors.New("invalid keyring backend")
	errKeyringTimeout        = errors.New("keyring connection timed out")
	keyringOpenFunc          = keyring.Open
)

type KeyringBackendInfo struct {
	Value  string
	Source string
}

const (
	keyringBackendSourceEnv     = "env"
	keyringBackendSourceConfig  = "config"
	keyringBackendSourceDefault = "default"
	keyringBackendAuto          = "auto"
)

// keyringOpenTimeout is the maximum time to wait for keyring.Open() to complete.
// On headless Linux, D-Bus SecretService can hang indefinitely if gnome-keyring
// is installed but not running.
const keyringOpenTimeout = 5 * time.Second

// Store reads and writes relay secrets. The keyring is opened lazily on
// first use.
type Store struct {
	backend KeyringBackendInfo
	open    func() (keyring.Keyring, error)
}

// NewStore returns a Store using the backend named by MAILRELAY_KEYRING_BACKEND,
// else configured, else "auto".
func NewStore(configured string) *Store {
	s := &Store{backend: ResolveKeyringBackendInfo(configured)}
	s.open = s.openKeyring
	return s
}

// Backend reports which keyring backend the store uses and where that
// choice came from.
func (s *Store) Backend() KeyringBackendInfo {
	return s.backend
}

func ResolveKeyringBackendInfo(configured string) KeyringBackendInfo {
	if v := normalize(os.Getenv(keyringBackendEnv)); v != "" {
		return KeyringBackendInfo{Value: v, Source: keyringBackendSourceEnv}
	}
	if v := normalize(configured); v != "" {
		return KeyringBackendInfo{Value: v, Source: keyringBackendSourceConfig}
	}
	return KeyringBackendInfo{Value: keyringBackendAuto, Source: keyringBackendSourceDefault}
}

func allowedBackends(info KeyringBackendInfo) ([]keyring.BackendType, error) {
	switch info.Value {
	case "", keyringBackendAuto:
		return nil, nil
	case "keychain":
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case "secret-service":
		return []keyring.BackendType{keyring.SecretServiceBackend}, nil
	case "file":
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, keychain, secret-service, or file)", errInvalidKeyringBackend, info.Value, keyringBackendAuto)
	}
}

func fileKeyringPasswordFuncFrom(password string, passwordSet bool, isTTY bool) keyring.PromptFunc {
	// An empty passphrase set on purpose is valid.
	if passwordSet {
		return keyring.FixedStringPrompt(password)
	}

	if isTTY {
		return keyring.TerminalPrompt
	}

	return func(_ string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, keyringPasswordEnv)
	}
}

func fileKeyringPasswordFunc() keyring.PromptFunc {
	password, passwordSet := os.LookupEnv(keyringPasswordEnv)
	return fileKeyringPasswordFuncFrom(password, passwordSet, term.IsTerminal(int(os.Stdin.Fd())))
}

func shouldForceFileBackend(goos string, backendInfo KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && backendInfo.Value == keyringBackendAuto && dbusAddr == ""
}

func shouldUseKeyringTimeout(goos string, backendInfo KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && backendInfo.Value == keyringBackendAuto && dbusAddr != ""
}

func (s *Store) openKeyring() (keyring.Keyring, error) {
	keyringDir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, err
	}

	backends, err := allowedBackends(s.backend)
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if shouldForceFileBackend(runtime.GOOS, s.backend, dbusAddr) {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	cfg := keyring.Config{
		ServiceName:              config.AppName,
		KeychainTrustApplication: false,
		AllowedBackends:          backends,
		FileDir:                  keyringDir,
		FilePasswordFunc:         fileKeyringPasswordFunc(),
	}

	if shouldUseKeyringTimeout(runtime.GOOS, s.backend, dbusAddr) {
		return openKeyringWithTimeout(cfg, keyringOpenTimeout)
	}

	ring, err := keyringOpenFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return ring, nil
}

type keyringResult struct {
	ring keyring.Keyring
	err  error
}

func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	ch := make(chan keyringResult, 1)

	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- keyringResult{ring, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}
		return res.ring, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v (D-Bus SecretService may be unresponsive); "+
			"set %s=file and %s=<password> to use encrypted file storage instead",
			errKeyringTimeout, timeout, keyringBackendEnv, keyringPasswordEnv)
	}
}

func (s *Store) set(key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errMissingSecretKey
	}

	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: key, Data: value, Label: config.AppName}); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}

	return nil
}

func (s *Store) get(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errMissingSecretKey
	}

	ring, err := s.open()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("read secret: %w", err)
	}

	return item.Data, nil
}

func (s *Store) SetMailPassword(username, password string) error {
	user := normalize(username)
	if user == "" {
		return errMissingUsername
	}
	if password == "" {
		return errMissingValue
	}

	return s.set(passwordKey(user), []byte(password))
}

func (s *Store) MailPassword(username string) (string, error) {
	user := normalize(username)
	if user == "" {
		return "", errMissingUsername
	}

	data, err := s.get(passwordKey(user))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (s *Store) SetBotToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errMissingValue
	}
	return s.set(botTokenKey, []byte(token))
}

func (s *Store) BotToken() (string, error) {
	data, err := s.get(botTokenKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func passwordKey(username string) string {
	return fmt.Sprintf("mail:password:%s", username)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
