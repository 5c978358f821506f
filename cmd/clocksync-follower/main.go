// ABOUTME: Entry point for the clock sync follower
// ABOUTME: Parses CLI flags and runs the follower application
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/clocksync-go/internal/app"
	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := app.DefaultConfig()
	var noTUI bool

	cmd := &cobra.Command{
		Use:           "clocksync-follower",
		Short:         "Keep this host's clock in step with a clocksync time source",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.UseTUI = !noTUI
			if err := config.ApplyEnv(os.LookupEnv, cmd.Flags().Changed); err != nil {
				return err
			}

			a, err := app.New(config)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.Server, "server", config.Server, "Time source host:port (skip mDNS discovery)")
	flags.DurationVar(&config.Interval, "interval", config.Interval, "Pause between sync cycles")
	flags.StringVar(&config.Clock, "clock", config.Clock, "Clock to correct: virtual or system")
	flags.DurationVar(&config.MaxJump, "max-jump", config.MaxJump, "Refuse system clock jumps larger than this (0 = unlimited)")
	flags.StringVar(&config.Listen, "listen", config.Listen, "Status and metrics HTTP address (empty disables)")
	flags.StringVar(&config.NTPServer, "ntp-server", config.NTPServer, "NTP server for periodic cross-checks (empty disables)")
	flags.DurationVar(&config.NTPInterval, "ntp-interval", config.NTPInterval, "Pause between NTP cross-checks")
	flags.BoolVar(&config.Trace, "trace", config.Trace, "Export a trace span per sync cycle")
	flags.StringVar(&config.TraceFile, "trace-file", config.TraceFile, "Trace output file when the TUI is enabled")
	flags.StringVar(&config.LogFile, "log-file", config.LogFile, "Log file path")
	flags.BoolVar(&config.Debug, "debug", config.Debug, "Enable debug logging")
	flags.BoolVar(&noTUI, "no-tui", false, "Disable TUI, stream logs to stdout instead")
	flags.StringVar(&config.Name, "name", config.Name, "Follower friendly name")
	flags.DurationVar(&config.DiscoveryTimeout, "discovery-timeout", config.DiscoveryTimeout, "Give up discovery after this long (0 = wait forever)")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		},
	}
}
