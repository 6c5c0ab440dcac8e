package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"mailrelay/internal/config"
	"mailrelay/internal/secrets"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoTTY = errors.New("no TTY available to prompt for secrets")

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Credential management",
	}
	cmd.AddCommand(newAuthLoginCmd(opts))
	return cmd
}

func newAuthLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		username string
		password string
		botToken string
		skipBot  bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the mail password and bot token in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := ""
			cfg, err := config.Load(opts.configPath)
			switch {
			case err == nil:
				backend = cfg.KeyringBackend
				if !cmd.Flags().Changed("username") {
					username = cfg.Mail.Username
				}
			case username == "":
				return fmt.Errorf("%w (pass --username to store credentials without a settings file)", err)
			}
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("%w: mail.username is required", config.ErrInvalidConfig)
			}

			if password == "" {
				password, err = promptSecret(cmd, fmt.Sprintf("Mail password for %s", username))
				if err != nil {
					return err
				}
			}
			if botToken == "" && !skipBot {
				botToken, err = promptSecret(cmd, "Telegram bot token")
				if err != nil {
					return err
				}
			}

			store := secrets.NewStore(backend)
			if err := store.SetMailPassword(username, password); err != nil {
				return err
			}
			if botToken != "" {
				if err := store.SetBotToken(botToken); err != nil {
					return err
				}
			}

			info := store.Backend()
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials stored in keyring (backend %s, from %s)\n", info.Value, info.Source)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Mail username (defaults to mail.username from the settings file)")
	cmd.Flags().StringVar(&password, "password", "", "Mail password or app password")
	cmd.Flags().StringVar(&botToken, "bot-token", "", "Telegram bot token")
	cmd.Flags().BoolVar(&skipBot, "skip-bot-token", false, "Only store the mail password")

	return cmd
}

func promptSecret(cmd *cobra.Command, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w; pass it as a flag instead", errNoTTY)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
