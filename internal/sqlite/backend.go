// Package sqlite implements a SessionStore backed by SQLite, with a JSONL
// file as the source of truth. On Attach the database is rebuilt from
// sessions.jsonl; every change is written back to that file either at once
// or when the store detaches, depending on the sync strategy.
//
// An attached store holds an exclusive lock on its data directory, so two
// stores (in one process or in several) never share a database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

const (
	dbFileName   = "milestones.db"
	sessionsFile = "sessions.jsonl"
	lockFileName = "milestones.lock"

	defaultLockTimeout = 10 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
)

var _ types.SessionStore = (*Store)(nil)

// Store implements types.SessionStore on SQLite.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	lock     *flock.Flock

	logger      *zap.Logger
	lockTimeout time.Duration

	// dirty is set when the table changed since the last JSONL write.
	// Only the on_close strategy leaves it set between calls.
	dirty bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockTimeout bounds how long Attach waits for another store to
// release the data directory.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// NewStore creates a new SQLite store. The store is not attached; call
// Attach with a Config to initialize.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:      zap.NewNop(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach locks config.DataDir, creating it if needed, rebuilds the
// database and loads sessions.jsonl into it. Returns ErrAlreadyAttached if
// already attached and ErrStoreLocked if another store keeps the directory
// past the lock timeout.
func (s *Store) Attach(config types.Config) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return types.ErrBackendUnknown
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	config.DataDir = dataDir

	lock, err := s.lockDataDir(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = lock.Unlock()
		}
	}()

	// The JSONL file is authoritative; the database is a rebuildable cache.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}

	jsonlPath := filepath.Join(dataDir, sessionsFile)
	if err := ensureJSONL(jsonlPath); err != nil {
		db.Close()
		return err
	}
	loaded, skipped, err := loadSessions(db, jsonlPath)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed session records",
			zap.String("file", jsonlPath),
			zap.Int("skipped", skipped),
			zap.Int("loaded", loaded),
		)
	}

	s.db = db
	s.lock = lock
	s.config = config
	s.dirty = false
	s.attached = true
	return nil
}

// lockDataDir takes the exclusive directory lock, retrying until the lock
// timeout expires.
func (s *Store) lockDataDir(dataDir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(dataDir, lockFileName))

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("locking %s: %w", dataDir, err)
	}
	if !locked {
		_ = lock.Close()
		return nil, fmt.Errorf("%w: %s", types.ErrStoreLocked, dataDir)
	}
	return lock, nil
}

// Detach flushes pending changes, closes the database and releases the
// directory lock. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}

	if s.dirty {
		if err := s.persist(context.Background(), s.db); err != nil {
			return fmt.Errorf("flush pending writes: %w", err)
		}
		s.dirty = false
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			return fmt.Errorf("unlocking data dir: %w", err)
		}
		s.lock = nil
	}
	s.attached = false
	return nil
}

// DataDir returns the directory the store was attached to.
func (s *Store) DataDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.DataDir
}

// mutateLocked runs fn in a transaction. Under the immediate strategy the
// JSONL file is rewritten from inside the transaction and the transaction
// commits only if that write succeeds, so a failed write leaves both the
// table and the file as they were. The caller must hold the write lock.
func (s *Store) mutateLocked(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	immediate := s.config.EffectiveSyncStrategy() == types.SyncImmediate
	if immediate {
		if err := s.persist(ctx, tx); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if !immediate {
		s.dirty = true
	}
	return nil
}

// persist rewrites sessions.jsonl from the table as q sees it.
func (s *Store) persist(ctx context.Context, q querier) error {
	states, err := listSessions(ctx, q)
	if err != nil {
		return err
	}
	return writeSessions(filepath.Join(s.config.DataDir, sessionsFile), states)
}
