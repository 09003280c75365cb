package cli

import (
	"fmt"

	"github.com/monorkin/flow-index-monitor/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:              "version",
	Short:            "Print the version",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run:              runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.GetVersion())
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
