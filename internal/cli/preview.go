package cli

import (
	"fmt"
	"os"

	"mailrelay/internal/mbox"
	"mailrelay/internal/message"
	"mailrelay/internal/relay"

	"github.com/spf13/cobra"
)

func newPreviewCmd() *cobra.Command {
	var fallbackSender string

	cmd := &cobra.Command{
		Use:   "preview <mbox-file>",
		Short: "Print the chat text each message of an mbox file would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			return mbox.Each(f, func(m mbox.Message) error {
				decoded, err := message.Decode(m.Raw)
				if err != nil {
					fmt.Fprintf(out, "#%d skipped: %v\n\n", m.Index, err)
					return nil
				}
				sender := decoded.Sender
				if sender == "" {
					sender = fallbackSender
				}
				record := relay.FormatRecord(uint32(m.Index), sender, decoded)
				note := decoded.Kind.String()
				if record.Truncated {
					note += ", truncated"
				}
				fmt.Fprintf(out, "#%d (%s)\n%s\n\n", m.Index, note, record.Text)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fallbackSender, "sender", "unknown", "Sender shown for messages without a From header")

	return cmd
}
