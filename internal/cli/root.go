package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mailrelay/internal/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "mailrelay",
		Short:        "mailrelay forwards mail from trusted senders to a Telegram chat",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.SettingsPath(), "Settings file (env "+config.SettingsFileEnv+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("MAILRELAY_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", envOr("MAILRELAY_LOG_FORMAT", "text"), "Log format: text or json")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newPreviewCmd())
	cmd.AddCommand(newAuthCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

// Execute runs the root command. The first SIGINT or SIGTERM cancels the
// command context; a second one terminates the process immediately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
