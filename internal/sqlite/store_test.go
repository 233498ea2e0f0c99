package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/milestones/pkg/progress"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sqliteConfig(dir, strategy string) types.Config {
	return types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dir,
		SyncStrategy: strategy,
	}
}

func attachStore(t *testing.T, dir, strategy string, opts ...Option) *Store {
	t.Helper()
	s := NewStore(opts...)
	require.NoError(t, s.Attach(sqliteConfig(dir, strategy)))
	return s
}

// blockJSONL replaces sessions.jsonl with a directory so the next rewrite
// fails, and returns a func that undoes it.
func blockJSONL(t *testing.T, dir string) func() {
	t.Helper()
	path := filepath.Join(dir, sessionsFile)
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))
	return func() {
		require.NoError(t, os.Remove(path))
	}
}

func TestStore_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	s := attachStore(t, tmpDir, "")
	defer s.Detach()

	_, err := os.Stat(filepath.Join(tmpDir, dbFileName))
	assert.NoError(t, err, "database file created")
	_, err = os.Stat(filepath.Join(tmpDir, sessionsFile))
	assert.NoError(t, err, "sessions file created")

	err = s.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
	assert.Equal(t, tmpDir, s.DataDir())
}

func TestStore_AttachRejectsOtherBackends(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Attach(types.Config{Backend: types.BackendMemory}), types.ErrBackendUnknown)
	assert.ErrorIs(t, s.Attach(types.Config{Backend: types.BackendSQLite, SyncStrategy: "batch"}), types.ErrSyncStrategyUnknown)
}

func TestStore_DetachIdempotent(t *testing.T) {
	s := attachStore(t, t.TempDir(), "")
	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach())

	_, err := s.Load(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	assert.ErrorIs(t, s.Save(context.Background(), types.TrackerState{SessionID: "x"}), types.ErrStoreDetached)
	assert.ErrorIs(t, s.Delete(context.Background(), "x"), types.ErrStoreDetached)
	_, err = s.List(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir(), "")
	defer s.Detach()

	_, err := s.Load(ctx, "s1")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	when := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s1", LastUnlockedCount: 2, UpdatedAt: when}))

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.LastUnlockedCount)
	assert.True(t, when.Equal(got.UpdatedAt))

	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s1", LastUnlockedCount: 1, UpdatedAt: when}))
	got, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LastUnlockedCount)

	require.NoError(t, s.Delete(ctx, "s1"))
	assert.ErrorIs(t, s.Delete(ctx, "s1"), types.ErrSessionNotFound)
}

func TestStore_SaveValidates(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir(), "")
	defer s.Detach()

	assert.ErrorIs(t, s.Save(ctx, types.TrackerState{}), types.ErrInvalidSessionID)
	assert.ErrorIs(t, s.Save(ctx, types.TrackerState{SessionID: "s", LastUnlockedCount: -1}), types.ErrInvalidInput)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir(), "")
	defer s.Detach()

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: id, LastUnlockedCount: i}))
	}
	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].SessionID)
	assert.Equal(t, 1, got[0].LastUnlockedCount)
	assert.Equal(t, "c", got[2].SessionID)
}

func TestStore_ImmediateWritesJSONL(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	s := attachStore(t, tmpDir, types.SyncImmediate)
	defer s.Detach()

	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s1", LastUnlockedCount: 3}))

	data, err := os.ReadFile(filepath.Join(tmpDir, sessionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"s1"`)
	assert.Contains(t, string(data), `"last_unlocked_count":3`)

	require.NoError(t, s.Delete(ctx, "s1"))
	data, err = os.ReadFile(filepath.Join(tmpDir, sessionsFile))
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(data)))
}

func TestStore_OnCloseDefersJSONL(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	s := attachStore(t, tmpDir, types.SyncOnClose)

	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s1", LastUnlockedCount: 3}))

	path := filepath.Join(tmpDir, sessionsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "nothing written before Detach")

	require.NoError(t, s.Detach())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"s1"`)
}

func TestStore_SurvivesReattach(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	s := attachStore(t, tmpDir, "")
	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s1", LastUnlockedCount: 2}))
	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s2", LastUnlockedCount: 4}))
	require.NoError(t, s.Detach())

	s2 := attachStore(t, tmpDir, "")
	defer s2.Detach()

	got, err := s2.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 4, got.LastUnlockedCount)

	all, err := s2.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)

	content := strings.Join([]string{
		`{"session_id":"good","last_unlocked_count":2,"updated_at":"2026-01-01T00:00:00Z"}`,
		`not json`,
		``,
		`{"session_id":"","last_unlocked_count":1,"updated_at":"2026-01-01T00:00:00Z"}`,
		`{"session_id":"neg","last_unlocked_count":-3,"updated_at":"2026-01-01T00:00:00Z"}`,
		`{"session_id":"extra","last_unlocked_count":1,"updated_at":"2026-01-01T00:00:00Z","future_field":true}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, sessionsFile), []byte(content), 0o644))

	s := attachStore(t, tmpDir, "", WithLogger(zap.New(core)))
	defer s.Detach()

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "extra", all[0].SessionID)
	assert.Equal(t, "good", all[1].SessionID)

	entries := logs.FilterMessage("skipped malformed session records").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 3, fields["skipped"])
	assert.EqualValues(t, 2, fields["loaded"])
}

func TestReadSessionsCountsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), sessionsFile)
	require.NoError(t, os.WriteFile(path, []byte("{\"session_id\":\"a\",\"last_unlocked_count\":1,\"updated_at\":\"2026-01-01T00:00:00Z\"}\n{oops\n"), 0o644))

	states, skipped, err := readSessions(path)
	require.NoError(t, err)
	assert.Len(t, states, 1)
	assert.Equal(t, 1, skipped)

	states, skipped, err = readSessions(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Zero(t, skipped)
}

func TestWriteSessionsLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, sessionsFile)
	require.NoError(t, writeSessions(path, []types.TrackerState{{SessionID: "a", LastUnlockedCount: 1}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sessionsFile, entries[0].Name())
}

func TestStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir(), "")
	defer s.Detach()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.Save(ctx, types.TrackerState{SessionID: id, LastUnlockedCount: i}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 16)
}

func TestStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	s := attachStore(t, tmpDir, types.SyncImmediate)
	defer s.Detach()

	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "kept", LastUnlockedCount: 1}))

	unblock := blockJSONL(t, tmpDir)
	assert.Error(t, s.Save(ctx, types.TrackerState{SessionID: "kept", LastUnlockedCount: 3}))
	assert.Error(t, s.Save(ctx, types.TrackerState{SessionID: "new", LastUnlockedCount: 2}))
	assert.Error(t, s.Delete(ctx, "kept"))

	got, err := s.Load(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LastUnlockedCount, "failed save rolled back")
	_, err = s.Load(ctx, "new")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	unblock()
	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "kept", LastUnlockedCount: 3}))
	got, err = s.Load(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastUnlockedCount)
}

func TestStore_FailedWriteDoesNotLoseCelebration(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	s := attachStore(t, tmpDir, types.SyncImmediate)
	defer s.Detach()
	tr := progress.NewTracker(types.DefaultCatalog(), s)

	unblock := blockJSONL(t, tmpDir)
	out, err := tr.Observe(ctx, "s1", 3)
	require.Error(t, err)
	assert.False(t, out.Celebrate)
	assert.Equal(t, 1, strings.Count(err.Error(), "saving session"), err.Error())

	unblock()
	out, err = tr.Observe(ctx, "s1", 3)
	require.NoError(t, err)
	assert.True(t, out.Celebrate)
	assert.Equal(t, 0, out.Previous)
	assert.Len(t, out.NewlyUnlocked, 2)
}

func TestStore_DataDirLockedWhileAttached(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	a := attachStore(t, tmpDir, "")
	require.NoError(t, a.Save(ctx, types.TrackerState{SessionID: "alice", LastUnlockedCount: 2}))

	b := NewStore(WithLockTimeout(50 * time.Millisecond))
	err := b.Attach(sqliteConfig(tmpDir, ""))
	require.ErrorIs(t, err, types.ErrStoreLocked)

	// The first store still works after the refused attach.
	require.NoError(t, a.Save(ctx, types.TrackerState{SessionID: "alice", LastUnlockedCount: 3}))
	require.NoError(t, a.Detach())

	require.NoError(t, b.Attach(sqliteConfig(tmpDir, "")))
	defer b.Detach()
	got, err := b.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastUnlockedCount)
}

func TestStore_AttachWaitsForLock(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	a := attachStore(t, tmpDir, types.SyncOnClose)
	require.NoError(t, a.Save(ctx, types.TrackerState{SessionID: "alice", LastUnlockedCount: 2}))

	b := NewStore(WithLockTimeout(5 * time.Second))
	done := make(chan error, 1)
	go func() { done <- b.Attach(sqliteConfig(tmpDir, "")) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, a.Detach())
	require.NoError(t, <-done)
	defer b.Detach()

	require.NoError(t, b.Save(ctx, types.TrackerState{SessionID: "bob", LastUnlockedCount: 1}))
	all, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2, "sessions from both stores survive")
	assert.Equal(t, "alice", all[0].SessionID)
	assert.Equal(t, "bob", all[1].SessionID)
}

func TestStore_UnlockStampsSurviveReattach(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	first := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s := attachStore(t, tmpDir, "")
	require.NoError(t, s.Save(ctx, types.TrackerState{
		SessionID:         "s1",
		LastUnlockedCount: 2,
		UnlockedAt:        map[string]time.Time{"exp": first, "adv": second},
	}))
	require.NoError(t, s.Save(ctx, types.TrackerState{SessionID: "s2"}))
	require.NoError(t, s.Detach())

	s = attachStore(t, tmpDir, "")
	defer s.Detach()

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.UnlockedAt, 2)
	assert.True(t, first.Equal(got.UnlockedAt["exp"]))
	assert.True(t, second.Equal(got.UnlockedAt["adv"]))

	got, err = s.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, got.UnlockedAt)
}
