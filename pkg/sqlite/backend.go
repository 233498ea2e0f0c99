// Package sqlite exposes the SQLite session store to library users while
// keeping its implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/milestones/internal/sqlite"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

// NewStore creates a SQLite-backed session store. The store is not
// attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewStore()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".milestones-db",
//	})
//	defer store.Detach()
//	tracker := progress.NewTracker(types.DefaultCatalog(), store)
func NewStore() types.SessionStore {
	return sqlite.NewStore()
}
