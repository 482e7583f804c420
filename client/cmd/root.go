package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/updraftio/updraft/client/internal/logstore"
	"github.com/updraftio/updraft/client/internal/updater"
	"github.com/updraftio/updraft/client/internal/updates"
	"github.com/updraftio/updraft/util"
)

const actionTimeout = 2 * time.Minute

var (
	configPath string
	logLevel   string
	logFile    string
	updateURL  string
	channel    string

	rootCmd = &cobra.Command{
		Use:          "updraft",
		Short:        "Updraft over-the-air update client",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Updraft config file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets Updraft log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "console", "sets Updraft log path. If console is specified the log will be output to stdout")
	rootCmd.PersistentFlags().StringVar(&updateURL, "update-url", "", fmt.Sprintf("Update server URL (default \"%s\")", updater.DefaultUpdateURL))
	rootCmd.PersistentFlags().StringVar(&channel, "channel", "", fmt.Sprintf("Release channel to check (default \"%s\")", updater.DefaultChannel))

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupClient initializes logging and wires the bus, updater and watcher.
// The returned context bounds the command's native operations; the returned
// cleanup stops the watcher.
func setupClient(cmd *cobra.Command) (*updates.Watcher, context.Context, func(), error) {
	util.SetFlagsFromEnvVars(rootCmd)

	if err := util.InitLog(logLevel, logFile); err != nil {
		return nil, nil, nil, fmt.Errorf("init log: %w", err)
	}

	cfg, err := updater.ReadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if updateURL != "" {
		cfg.UpdateURL = updateURL
	}
	if channel != "" {
		cfg.Channel = channel
	}

	store := logstore.NewStore(0)
	log.AddHook(logstore.NewHook(store))

	watcher := updates.NewWatcher(updater.NewManager(cfg, store), updates.NewBus())

	ctx, cancel := context.WithTimeout(cmd.Context(), actionTimeout)
	SetupCloseHandler(ctx, cancel)

	if err := watcher.Start(ctx); err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("start watcher: %w", err)
	}

	cleanup := func() {
		watcher.Stop()
		cancel()
	}
	return watcher, ctx, cleanup, nil
}

// SetupCloseHandler cancels the context on SIGINT/SIGTERM
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
		case <-termCh:
			log.Info("shutdown signal received")
			cancel()
		}
	}()
}
