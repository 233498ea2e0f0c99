package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

const (
	upsertSQL = `INSERT INTO sessions (session_id, last_unlocked_count, unlocked_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET last_unlocked_count = excluded.last_unlocked_count, unlocked_at = excluded.unlocked_at, updated_at = excluded.updated_at`

	selectSessionSQL = "SELECT session_id, last_unlocked_count, unlocked_at, updated_at FROM sessions WHERE session_id = ?"
	selectAllSQL     = "SELECT session_id, last_unlocked_count, unlocked_at, updated_at FROM sessions ORDER BY session_id"
	deleteSessionSQL = "DELETE FROM sessions WHERE session_id = ?"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (types.TrackerState, error) {
	var (
		st       types.TrackerState
		unlocked string
		updated  string
	)
	if err := row.Scan(&st.SessionID, &st.LastUnlockedCount, &unlocked, &updated); err != nil {
		return types.TrackerState{}, err
	}
	if err := json.Unmarshal([]byte(unlocked), &st.UnlockedAt); err != nil {
		return types.TrackerState{}, fmt.Errorf("parsing unlocked_at %q: %w", unlocked, err)
	}
	if len(st.UnlockedAt) == 0 {
		st.UnlockedAt = nil
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return types.TrackerState{}, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	st.UpdatedAt = t
	return st, nil
}

// upsertSession writes one state. A zero UpdatedAt is stamped with now.
func upsertSession(ctx context.Context, e execer, st types.TrackerState) error {
	unlocked := []byte("{}")
	if len(st.UnlockedAt) > 0 {
		var err error
		if unlocked, err = json.Marshal(st.UnlockedAt); err != nil {
			return fmt.Errorf("encoding unlocked_at: %w", err)
		}
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := e.ExecContext(ctx, upsertSQL, st.SessionID, st.LastUnlockedCount, string(unlocked), updated.UTC().Format(time.RFC3339Nano))
	return err
}

// Load returns the state stored for id, or ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, id string) (types.TrackerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.TrackerState{}, types.ErrStoreDetached
	}
	if err := types.ValidateSessionID(id); err != nil {
		return types.TrackerState{}, err
	}

	st, err := scanSession(s.db.QueryRowContext(ctx, selectSessionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.TrackerState{}, types.ErrSessionNotFound
	}
	if err != nil {
		return types.TrackerState{}, fmt.Errorf("select: %w", err)
	}
	return st, nil
}

// Save upserts state. Under the immediate strategy the row is committed
// only once sessions.jsonl holds it.
func (s *Store) Save(ctx context.Context, state types.TrackerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	if err := state.Validate(); err != nil {
		return err
	}
	return s.mutateLocked(ctx, func(tx *sql.Tx) error {
		if err := upsertSession(ctx, tx, state); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		return nil
	})
}

// Delete removes the state stored for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	return s.mutateLocked(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteSessionSQL, id)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if n == 0 {
			return types.ErrSessionNotFound
		}
		return nil
	})
}

// List returns all states ordered by session id.
func (s *Store) List(ctx context.Context) ([]types.TrackerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return listSessions(ctx, s.db)
}

func listSessions(ctx context.Context, q querier) ([]types.TrackerState, error) {
	rows, err := q.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	states := []types.TrackerState{}
	for rows.Next() {
		st, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return states, nil
}
