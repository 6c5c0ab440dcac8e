package cli

import (
	"fmt"
	"log/slog"

	"mailrelay/internal/config"
	"mailrelay/internal/imap"
	"mailrelay/internal/relay"
	"mailrelay/internal/telegram"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the mailbox and relay new mail until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := setupPoller(cmd, opts)
			if err != nil {
				return err
			}
			return poller.Run(cmd.Context())
		},
	}
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single relay cycle and print what happened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := setupPoller(cmd, opts)
			if err != nil {
				return err
			}
			stats, err := poller.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d senders, %d unseen, %d delivered, %d delivery failures, %d undecodable, %d flag failures\n",
				stats.Senders, stats.Matched, stats.Delivered, stats.DeliveryFailed, stats.DecodeFailed, stats.FlagFailed)
			return nil
		},
	}
	return cmd
}

func setupPoller(cmd *cobra.Command, opts *rootOptions) (*relay.Poller, error) {
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		slog.String("host", cfg.Mail.Host),
		slog.String("password_source", cfg.Mail.PasswordSource),
		slog.String("token_source", cfg.Bot.TokenSource))

	return newPoller(cfg, logger), nil
}

func newPoller(cfg config.Config, logger *slog.Logger) *relay.Poller {
	return relay.NewPoller(
		imap.NewDialer(cfg.Mail, cfg.Timeout),
		telegram.New(cfg.Bot.Token, cfg.Timeout),
		relay.Options{
			Mailbox:     cfg.Mail.Mailbox,
			Senders:     cfg.Mail.SpecialSenders,
			Channel:     cfg.Bot.ChatID,
			Interval:    cfg.PollInterval,
			CallTimeout: cfg.Timeout,
		},
		logger,
	)
}
