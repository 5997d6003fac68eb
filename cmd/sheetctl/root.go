package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sheetport/internal/app"
	"sheetport/internal/platform/config"
	"sheetport/internal/platform/logger"
)

var (
	verbose bool
	noPeer  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sheetctl",
	Short: "Import Shadowrun 6 Eden character sheets",
	Long: `sheetctl imports SR6 Eden character sheet JSON using the same pipeline as
the sheetport server. Configuration comes from SHEETPORT_* variables and the
optional SHEETPORT_CONFIG file. Characters persist only when
SHEETPORT_DATABASE_URL is set.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noPeer, "no-peer", false, "Do not serve delegated creation from this process")
}

// startApp loads configuration and starts the delegation client and, unless
// disabled, the in-process GM peer. The returned func stops both.
func startApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if noPeer {
		cfg.Delegation.PeerEnabled = false
	}
	level := cfg.Server.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(os.Stderr, "text", level)
	slog.SetDefault(log)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	peerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.RunPeer(peerCtx); err != nil {
			log.Error("gm peer stopped", "error", err)
		}
	}()
	stop := func() {
		cancel()
		<-done
		if err := a.Close(); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}
	return a, stop, nil
}
