package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/milestones/pkg/progress"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage tracking sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a session and print its id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withTracker(func(tr *progress.Tracker) error {
					st, err := tr.StartSession(cmd.Context())
					if err != nil {
						return sysErr(err)
					}
					if a.flags.jsonMode {
						return writeJSON(cmd.OutOrStdout(), st)
					}
					fmt.Fprintln(cmd.OutOrStdout(), st.SessionID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "end <id>",
			Short: "End a session and discard its watermark",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withTracker(func(tr *progress.Tracker) error {
					if err := tr.EndSession(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "session %s ended\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a session's watermark",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := types.ValidateSessionID(args[0]); err != nil {
					return err
				}
				_, store, err := a.openTracker()
				if err != nil {
					return err
				}
				defer store.Detach()

				st, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return sysErr(fmt.Errorf("session %s: %w", args[0], err))
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				return printSessions(cmd.OutOrStdout(), []types.TrackerState{st})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, store, err := a.openTracker()
				if err != nil {
					return err
				}
				defer store.Detach()

				states, err := store.List(cmd.Context())
				if err != nil {
					return sysErr(err)
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), states)
				}
				return printSessions(cmd.OutOrStdout(), states)
			},
		},
	)
	return cmd
}
