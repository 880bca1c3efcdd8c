// cmd/version.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidhaze7x/genweaver/internal/service"
)

// Version is the application version.
// Intended to be overridden at build time with ldflags:
// go build -ldflags "-X github.com/voidhaze7x/genweaver/cmd.Version=1.0.0"
var Version = service.Version

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the genweaver version.",
	// No config or logger needed for a version print.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
