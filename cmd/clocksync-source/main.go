// ABOUTME: Entry point for the reference time source
// ABOUTME: Serves timestamps to followers and advertises itself over mDNS
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/clocksync-go/internal/logging"
	"github.com/Resonate-Protocol/clocksync-go/pkg/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := source.Config{Addr: ":4500", EnableMDNS: true}
	var (
		logFile string
		debug   bool
		noMDNS  bool
	)

	cmd := &cobra.Command{
		Use:          "clocksync-source",
		Short:        "Serve this host's clock to clocksync followers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(logging.Config{File: logFile, Stdout: true, Debug: debug})
			defer logger.Sync()

			if config.Name == "" {
				hostname, err := os.Hostname()
				if err != nil {
					hostname = "unknown"
				}
				config.Name = fmt.Sprintf("%s-clocksync-source", hostname)
			}
			config.EnableMDNS = !noMDNS
			config.Logger = logger

			srv := source.New(config)
			if err := srv.Start(); err != nil {
				return err
			}
			logger.Info("Press Ctrl-C to stop", zap.String("name", config.Name))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("Shutting down")
			srv.Stop()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.Addr, "listen", config.Addr, "TCP listen address")
	flags.DurationVar(&config.Offset, "offset", 0, "Artificial offset added to every reply")
	flags.StringVar(&config.Name, "name", "", "Source friendly name (default: hostname-clocksync-source)")
	flags.StringVar(&logFile, "log-file", "clocksync-source.log", "Log file path")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS advertisement")

	return cmd
}
