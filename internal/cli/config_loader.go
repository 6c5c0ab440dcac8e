package cli

import (
	"errors"
	"fmt"

	"mailrelay/internal/config"
	"mailrelay/internal/secrets"
)

// loadConfig reads the settings file and fills in a missing mail password
// or bot token from the keyring.
func loadConfig(path string) (config.Config, *secrets.Store, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	store := secrets.NewStore(cfg.KeyringBackend)

	if cfg.Mail.Password == "" && cfg.Mail.Username != "" {
		password, err := store.MailPassword(cfg.Mail.Username)
		switch {
		case err == nil:
			cfg.Mail.Password = password
			cfg.Mail.PasswordSource = "keyring"
		case !errors.Is(err, secrets.ErrSecretNotFound):
			return cfg, store, fmt.Errorf("load mail password: %w", err)
		}
	}

	if cfg.Bot.Token == "" {
		token, err := store.BotToken()
		switch {
		case err == nil:
			cfg.Bot.Token = token
			cfg.Bot.TokenSource = "keyring"
		case !errors.Is(err, secrets.ErrSecretNotFound):
			return cfg, store, fmt.Errorf("load bot token: %w", err)
		}
	}

	return cfg, store, nil
}
