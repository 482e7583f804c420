package cmd

import (
	"github.com/spf13/cobra"

	"github.com/updraftio/updraft/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints updraft version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.UpdraftVersion())
	},
}
