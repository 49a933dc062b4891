package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"sescli/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s, built: %s, %s)\n",
				config.AppName, config.Version, config.Commit, config.BuildTime, runtime.Version())
		},
	}
}
