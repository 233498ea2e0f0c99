package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize milestones configuration and storage",
		Long:  "Create the configuration and data directories, then initialize the session store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// config.yaml was written by the root command's setup.
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			store, err := newStore(cfg.Backend, a.logger)
			if err != nil {
				return err
			}
			if err := store.Attach(cfg); err != nil {
				return sysErr(fmt.Errorf("initialize storage: %w", err))
			}
			if err := store.Detach(); err != nil {
				return sysErr(fmt.Errorf("finalize storage: %w", err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "milestones initialized\nconfig: %s\ndata:   %s\n", a.configDir, cfg.DataDir)
			return nil
		},
	}
}
