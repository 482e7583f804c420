package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "restart into a pending update",
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, ctx, cleanup, err := setupClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if !watcher.State().IsUpdatePending {
			cmd.Println("No pending update to reload into")
			return nil
		}

		if err := <-watcher.Reload(ctx); err != nil {
			return fmt.Errorf("reload: %w", err)
		}

		cmd.Println("Reloading into pending update")
		return nil
	},
}
