package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mesh-intelligence/milestones/pkg/progress"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

const progressBarWidth = 20

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressBar draws percent as a fixed-width bar.
func progressBar(percent int) string {
	filled := percent * progressBarWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled) + "]"
}

func tripsLabel(n int) string {
	if n == 1 {
		return "1 more trip"
	}
	return fmt.Sprintf("%d more trips", n)
}

// printEvaluation renders the progress header and the unlocked and locked
// badge grids.
func printEvaluation(w io.Writer, e types.Evaluation) error {
	s := e.Summary
	fmt.Fprintf(w, "You've completed %d trips.\n", e.Trips)
	fmt.Fprintf(w, "%d of %d badges unlocked  %s %d%%\n", s.UnlockedCount, s.TotalCount, progressBar(s.Percent), s.Percent)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if unlocked := e.UnlockedBadges(); len(unlocked) > 0 {
		fmt.Fprintln(tw, "\nUnlocked badges")
		for _, b := range unlocked {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", b.Badge.Icon, b.Badge.Name, b.Badge.Description, unlockedOn(b))
		}
	}
	if locked := e.LockedBadges(); len(locked) > 0 {
		fmt.Fprintln(tw, "\nLocked badges")
		for _, b := range locked {
			fmt.Fprintf(tw, "  %s\t%s\t%s to unlock\n", b.Badge.Icon, b.Badge.Name, tripsLabel(b.Remaining))
		}
	}
	return tw.Flush()
}

// celebrate is the celebration effect: a banner naming the new badges.
func celebrate(w io.Writer, badges []types.BadgeDefinition) {
	names := make([]string, len(badges))
	for i, b := range badges {
		names[i] = strings.TrimSpace(b.Icon + " " + b.Name)
	}
	label := "New badge"
	if len(badges) > 1 {
		label = "New badges"
	}
	fmt.Fprintf(w, "🎉 %s unlocked: %s\n", label, strings.Join(names, ", "))
}

func printOutcome(w io.Writer, out progress.Outcome) error {
	if out.Celebrate {
		celebrate(w, out.NewlyUnlocked)
	}
	return printEvaluation(w, out.Evaluation)
}

func printSessions(w io.Writer, states []types.TrackerState) error {
	if len(states) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tUNLOCKED\tUPDATED")
	for _, st := range states {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", st.SessionID, st.LastUnlockedCount, formatTime(st.UpdatedAt))
	}
	return tw.Flush()
}

func printCatalog(w io.Writer, c *types.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTRIPS\tDESCRIPTION")
	for _, d := range c.Definitions() {
		fmt.Fprintf(tw, "%s\t%s %s\t%d\t%s\n", d.ID, d.Icon, d.Name, d.RequiredTrips, d.Description)
	}
	return tw.Flush()
}

// unlockedOn labels the first unlock date when the session recorded one.
func unlockedOn(b types.BadgeState) string {
	if b.UnlockedAt == nil {
		return ""
	}
	return "unlocked " + b.UnlockedAt.UTC().Format(time.DateOnly)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
