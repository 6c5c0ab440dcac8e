package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const AppName = "mailrelay"

// StateDir holds local state that does not belong in the settings file.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home dir: %w", err)
	}

	return filepath.Join(home, ".config", AppName), nil
}

// EnsureKeyringDir creates and returns the directory used by the keyring
// "file" backend.
func EnsureKeyringDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "keyring")

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure keyring dir: %w", err)
	}

	return dir, nil
}
