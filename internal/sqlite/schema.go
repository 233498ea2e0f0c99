package sqlite

import (
	"database/sql"
	"fmt"
)

const (
	createSessions = `CREATE TABLE sessions (
    session_id TEXT PRIMARY KEY,
    last_unlocked_count INTEGER NOT NULL CHECK (last_unlocked_count >= 0),
    unlocked_at TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL
);`

	idxSessionsUpdated = `CREATE INDEX idx_sessions_updated ON sessions(updated_at);`
)

var schemaDDL = []string{
	createSessions,
	idxSessionsUpdated,
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
