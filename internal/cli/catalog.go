package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/milestones/internal/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the badge catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List badge tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(a.configDir)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), cat.Definitions())
			}
			return printCatalog(cmd.OutOrStdout(), cat)
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as catalog.yaml",
		Long: `Export renders the active catalog in catalog.yaml format, to stdout or to
--output. Exporting the built-in catalog into the config directory is the
starting point for a custom one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(a.configDir)
			if err != nil {
				return err
			}
			data, err := catalog.Marshal(cat)
			if err != nil {
				return sysErr(fmt.Errorf("marshal catalog: %w", err))
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return sysErr(fmt.Errorf("write %s: %w", output, err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog written to %s\n", output)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")

	cmd.AddCommand(list, export)
	return cmd
}
