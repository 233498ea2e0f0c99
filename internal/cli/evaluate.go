package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/milestones/internal/catalog"
	"github.com/mesh-intelligence/milestones/pkg/progress"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var trips int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Show badge progress for a trip count",
		Long: `Evaluate the badge catalog against a trip count without touching any
session. Nothing is celebrated and nothing is stored.

Example:
  milestones evaluate --trips 4
  milestones evaluate --trips 4 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(a.configDir)
			if err != nil {
				return err
			}
			eval, err := progress.EvaluateCatalog(cat, trips)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), eval)
			}
			return printEvaluation(cmd.OutOrStdout(), eval)
		},
	}
	cmd.Flags().IntVar(&trips, "trips", 0, "number of completed trips")
	_ = cmd.MarkFlagRequired("trips")
	return cmd
}
