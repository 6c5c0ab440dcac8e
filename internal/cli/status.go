package cli

import (
	"fmt"
	"text/tabwriter"

	"mailrelay/internal/config"
	"mailrelay/internal/imap"
	"mailrelay/internal/relay"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show unseen message counts per trusted sender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := config.ValidateMail(cfg); err != nil {
				return err
			}

			session, err := imap.NewDialer(cfg.Mail, cfg.Timeout).Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = session.Logout()
			}()

			return printStatus(cmd, session, cfg.Mail.Mailbox, cfg.Mail.SpecialSenders)
		},
	}
	return cmd
}

func printStatus(cmd *cobra.Command, session relay.Session, mailbox string, senders []string) error {
	if err := session.Select(mailbox, true); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "SENDER\tUNSEEN")
	for _, sender := range senders {
		uids, err := session.SearchUnseenFrom(sender)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\n", sender, len(uids))
	}
	return tw.Flush()
}
