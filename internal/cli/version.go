package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the milestones release. Release builds override it with
// -ldflags "-X .../internal/cli.Version=...".
var Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/milestones"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the milestones version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "milestones v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
