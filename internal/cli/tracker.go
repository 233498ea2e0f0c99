package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/milestones/internal/catalog"
	"github.com/mesh-intelligence/milestones/internal/memory"
	"github.com/mesh-intelligence/milestones/internal/paths"
	"github.com/mesh-intelligence/milestones/internal/sqlite"
	"github.com/mesh-intelligence/milestones/pkg/progress"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

// storeConfig builds the SessionStore config from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysErr(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := types.Config{
		Backend:      a.cfg.GetString(cfgKeyBackend),
		DataDir:      dataDir,
		SyncStrategy: a.cfg.GetString(cfgKeySyncStrategy),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config.yaml: %w", err)
	}
	return cfg, nil
}

// newStore returns a detached store for the configured backend.
func newStore(backend string, logger *zap.Logger) (types.SessionStore, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewStore(sqlite.WithLogger(logger)), nil
	case types.BackendMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
	}
}

// openTracker loads the catalog, attaches the session store and returns a
// tracker over both. The caller must Detach the returned store.
func (a *app) openTracker() (*progress.Tracker, types.SessionStore, error) {
	cat, err := catalog.Load(a.configDir)
	if err != nil {
		return nil, nil, err
	}
	policy, err := progress.ParseWatermarkPolicy(a.cfg.GetString(cfgKeyWatermark))
	if err != nil {
		return nil, nil, fmt.Errorf("config.yaml: %w", err)
	}
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := newStore(cfg.Backend, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Attach(cfg); err != nil {
		return nil, nil, sysErr(fmt.Errorf("attach session store: %w", err))
	}
	a.logger.Debug("session store attached",
		zap.String("backend", cfg.Backend),
		zap.String("data_dir", cfg.DataDir),
		zap.Int("badges", cat.Len()),
		zap.Stringer("policy", policy),
	)

	tr := progress.NewTracker(cat, store,
		progress.WithLogger(a.logger),
		progress.WithWatermarkPolicy(policy),
	)
	return tr, store, nil
}

// withTracker runs fn against an open tracker and detaches the store
// afterwards, reporting a detach failure only if fn succeeded. Errors from
// fn are system errors unless they match a user-error sentinel.
func (a *app) withTracker(fn func(*progress.Tracker) error) (err error) {
	tr, store, err := a.openTracker()
	if err != nil {
		return err
	}
	defer func() {
		if derr := store.Detach(); derr != nil && err == nil {
			err = sysErr(fmt.Errorf("detach session store: %w", derr))
		}
	}()
	return sysErr(fn(tr))
}
