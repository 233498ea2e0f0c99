package progress

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

// Outcome is the result of one observation of a session's trip count.
type Outcome struct {
	SessionID  string           `json:"session_id"`
	Evaluation types.Evaluation `json:"evaluation"`

	// Previous is the watermark read before this observation.
	Previous int `json:"previous"`

	// Celebrate is true when the unlocked count rose above Previous. The
	// new watermark has already been stored when Celebrate is reported.
	Celebrate bool `json:"celebrate"`

	// NewlyUnlocked names the tiers crossed since Previous, lowest
	// threshold first. Empty unless Celebrate is true.
	NewlyUnlocked []types.BadgeDefinition `json:"newly_unlocked,omitempty"`
}

// Tracker runs the evaluate-reconcile-persist cycle for many sessions
// against one catalog and one store.
type Tracker struct {
	catalog *types.Catalog
	store   types.SessionStore
	policy  WatermarkPolicy
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the time source used for TrackerState.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithWatermarkPolicy selects how watermarks move. The default is
// WatermarkLatest.
func WithWatermarkPolicy(p WatermarkPolicy) Option {
	return func(t *Tracker) { t.policy = p }
}

// NewTracker returns a Tracker over an attached store.
func NewTracker(catalog *types.Catalog, store types.SessionStore, opts ...Option) *Tracker {
	t := &Tracker{
		catalog: catalog,
		store:   store,
		policy:  WatermarkLatest,
		logger:  zap.NewNop(),
		now:     time.Now,
		locks:   make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Catalog returns the catalog the tracker evaluates against.
func (t *Tracker) Catalog() *types.Catalog {
	return t.catalog
}

// StartSession issues a new session id and stores a zero watermark for it.
func (t *Tracker) StartSession(ctx context.Context) (types.TrackerState, error) {
	id, err := types.NewSessionID()
	if err != nil {
		return types.TrackerState{}, err
	}
	state := types.TrackerState{SessionID: id, UpdatedAt: t.now().UTC()}
	if err := t.store.Save(ctx, state); err != nil {
		return types.TrackerState{}, fmt.Errorf("saving session %s: %w", id, err)
	}
	t.logger.Debug("session started", zap.String("session", id))
	return state, nil
}

// Observe evaluates currentTrips, reconciles the unlocked count with the
// session's watermark and stores the new watermark. Invalid input is
// rejected before the session is touched. Concurrent calls for the same
// session are serialized; calls for different sessions are not.
func (t *Tracker) Observe(ctx context.Context, sessionID string, currentTrips int) (Outcome, error) {
	if err := types.ValidateSessionID(sessionID); err != nil {
		return Outcome{}, err
	}
	eval, err := EvaluateCatalog(t.catalog, currentTrips)
	if err != nil {
		return Outcome{}, err
	}

	unlock := t.lockSession(sessionID)
	defer unlock()

	state, err := t.load(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	celebrate, next, err := t.policy.Reconcile(state, eval.Summary.UnlockedCount)
	if err != nil {
		return Outcome{}, err
	}
	now := t.now().UTC()
	next.UpdatedAt = now
	next.UnlockedAt = stampUnlocks(state.UnlockedAt, eval, now)
	if err := t.store.Save(ctx, next); err != nil {
		return Outcome{}, fmt.Errorf("saving session %s: %w", sessionID, err)
	}

	out := Outcome{
		SessionID:  sessionID,
		Evaluation: withUnlockTimes(eval, next.UnlockedAt),
		Previous:   state.LastUnlockedCount,
		Celebrate:  celebrate,
	}
	log := t.logger.With(
		zap.String("session", sessionID),
		zap.Int("trips", currentTrips),
		zap.Int("previous", state.LastUnlockedCount),
		zap.Int("unlocked", eval.Summary.UnlockedCount),
	)
	switch {
	case celebrate:
		out.NewlyUnlocked = newlyUnlocked(t.catalog, state.LastUnlockedCount, eval.Summary.UnlockedCount)
		ids := make([]string, len(out.NewlyUnlocked))
		for i, d := range out.NewlyUnlocked {
			ids[i] = d.ID
		}
		log.Info("badges unlocked", zap.Strings("badges", ids))
	case eval.Summary.UnlockedCount < state.LastUnlockedCount:
		log.Info("unlocked count dropped", zap.Stringer("policy", t.policy), zap.Int("watermark", next.LastUnlockedCount))
	default:
		log.Debug("no new badges")
	}
	return out, nil
}

// Peek returns the session's watermark without changing it. An unknown
// session reads as a zero watermark.
func (t *Tracker) Peek(ctx context.Context, sessionID string) (types.TrackerState, error) {
	if err := types.ValidateSessionID(sessionID); err != nil {
		return types.TrackerState{}, err
	}
	unlock := t.lockSession(sessionID)
	defer unlock()
	return t.load(ctx, sessionID)
}

// EndSession discards the session's watermark. Ending an unknown session
// returns ErrSessionNotFound.
func (t *Tracker) EndSession(ctx context.Context, sessionID string) error {
	if err := types.ValidateSessionID(sessionID); err != nil {
		return err
	}
	unlock := t.lockSession(sessionID)
	defer unlock()
	if err := t.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("ending session %s: %w", sessionID, err)
	}
	t.logger.Debug("session ended", zap.String("session", sessionID))
	return nil
}

// stampUnlocks returns a copy of stamps with now recorded for every badge
// unlocked in eval that has no stamp yet. Existing stamps are kept.
func stampUnlocks(stamps map[string]time.Time, eval types.Evaluation, now time.Time) map[string]time.Time {
	out := maps.Clone(stamps)
	for _, b := range eval.Badges {
		if !b.Unlocked {
			continue
		}
		if _, ok := out[b.Badge.ID]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]time.Time)
		}
		out[b.Badge.ID] = now
	}
	return out
}

// withUnlockTimes sets UnlockedAt on the unlocked badges of eval that have
// a stamp. eval.Badges is copied, not modified.
func withUnlockTimes(eval types.Evaluation, stamps map[string]time.Time) types.Evaluation {
	badges := make([]types.BadgeState, len(eval.Badges))
	for i, b := range eval.Badges {
		if at, ok := stamps[b.Badge.ID]; ok && b.Unlocked {
			b.UnlockedAt = &at
		}
		badges[i] = b
	}
	eval.Badges = badges
	return eval
}

// load reads the session state. A missing session is the implicit zero
// state. The caller must hold the session lock.
func (t *Tracker) load(ctx context.Context, sessionID string) (types.TrackerState, error) {
	state, err := t.store.Load(ctx, sessionID)
	if errors.Is(err, types.ErrSessionNotFound) {
		return types.TrackerState{SessionID: sessionID}, nil
	}
	if err != nil {
		return types.TrackerState{}, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return state, nil
}

// lockSession acquires the per-session mutex and returns its release
// function. Entries are dropped once no caller holds or waits on them.
func (t *Tracker) lockSession(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sessionLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}
