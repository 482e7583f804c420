package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "download the latest available update",
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, ctx, cleanup, err := setupClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		// a fetch needs a fresh check first so the machine knows the target
		if err := <-watcher.CheckForUpdate(ctx); err != nil {
			return fmt.Errorf("check for update: %w", err)
		}

		state := watcher.State()
		if state.AvailableUpdate == nil {
			cmd.Println("No update available to fetch")
			return nil
		}

		if err := <-watcher.FetchUpdate(ctx); err != nil {
			return fmt.Errorf("fetch update: %w", err)
		}

		state = watcher.State()
		if state.DownloadedUpdate != nil {
			cmd.Printf("Downloaded update %s, pending reload\n", state.DownloadedUpdate.UpdateID)
		}
		return nil
	},
}
