package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/updraftio/updraft/client/internal/updates"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check the update server for a new update",
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, ctx, cleanup, err := setupClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		events := make(chan updates.Event, 1)
		remove := watcher.AddEventListener(func(e updates.Event) {
			select {
			case events <- e:
			default:
			}
		})
		defer remove()

		if err := <-watcher.CheckForUpdate(ctx); err != nil {
			return fmt.Errorf("check for update: %w", err)
		}

		select {
		case event := <-events:
			printCheckOutcome(cmd, watcher.State(), event)
		case <-time.After(actionTimeout):
			return fmt.Errorf("timed out waiting for check result")
		}

		return nil
	},
}

func printCheckOutcome(cmd *cobra.Command, state updates.State, event updates.Event) {
	switch event.Type {
	case updates.EventUpdateAvailable:
		cmd.Printf("Update available: %s (created %s)\n", event.Manifest.ID, event.Manifest.CreatedAt)
	case updates.EventNoUpdateAvailable:
		cmd.Println("No update available")
	case updates.EventError:
		cmd.Printf("Update check failed: %s\n", event.Err.Message)
	}

	if state.LastCheckedAt != nil {
		cmd.Printf("Last checked: %s\n", state.LastCheckedAt.Format(time.RFC3339))
	}
}
