package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/milestones/pkg/progress"
)

func newObserveCmd(a *app) *cobra.Command {
	var (
		sessionID string
		trips     int
	)

	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Record a trip count for a session and celebrate new badges",
		Long: `Observe evaluates the trip count, compares the unlocked badge count with
the session's watermark and stores the new watermark. New badges are
celebrated once; observing the same count again prints progress only.

Example:
  milestones observe --session $(milestones session start) --trips 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTracker(func(tr *progress.Tracker) error {
				out, err := tr.Observe(cmd.Context(), sessionID, trips)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				return printOutcome(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&trips, "trips", 0, "number of completed trips")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("trips")
	return cmd
}
