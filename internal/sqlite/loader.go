package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// loadSessions inserts every readable record of the JSONL file inside one
// transaction: either all of them load or the table stays empty. A later
// line for the same session replaces an earlier one. It reports how many
// records loaded and how many lines were skipped as malformed.
func loadSessions(db *sql.DB, path string) (loaded, skipped int, err error) {
	states, skipped, err := readSessions(path)
	if err != nil {
		return 0, 0, err
	}
	if len(states) == 0 {
		return 0, skipped, nil
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, st := range states {
		if err := upsertSession(ctx, tx, st); err != nil {
			return 0, 0, fmt.Errorf("loading session %s: %w", st.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return len(states), skipped, nil
}
