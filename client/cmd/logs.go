package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logMaxAge time.Duration

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "print recent client log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, ctx, cleanup, err := setupClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := <-watcher.ReadLogEntries(ctx, logMaxAge); err != nil {
			return fmt.Errorf("read log entries: %w", err)
		}

		entries := watcher.State().LogEntries
		if len(entries) == 0 {
			cmd.Println("No log entries")
			return nil
		}

		for _, entry := range entries {
			if entry.Code != "" {
				cmd.Printf("%s [%s] (%s) %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Code, entry.Message)
				continue
			}
			cmd.Printf("%s [%s] %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
		}
		return nil
	},
}

func init() {
	logsCmd.PersistentFlags().DurationVar(&logMaxAge, "max-age", time.Hour, "only print entries newer than this age")
}
