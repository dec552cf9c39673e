// Package status tracks per-provider health with escalating backoff and
// caches session cookies between pipeline runs.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Health represents the summarized state of one provider.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthDisabled Health = "disabled"
)

// Status is a point-in-time snapshot of one provider's tracked state.
type Status struct {
	IndexerID         int64      `json:"indexerId"`
	InitialFailure    *time.Time `json:"initialFailure,omitempty"`
	MostRecentFailure *time.Time `json:"mostRecentFailure,omitempty"`
	EscalationLevel   int        `json:"escalationLevel"`
	DisabledTill      *time.Time `json:"disabledTill,omitempty"`
}

// BackoffConfig defines the escalation ladder for failed providers.
type BackoffConfig struct {
	// Periods holds the backoff duration per escalation level; levels past
	// the end reuse the final entry.
	Periods []time.Duration
	// MaxEscalation caps the escalation level.
	MaxEscalation int
}

// DefaultBackoffConfig returns the standard ladder: 5m, 15m, 30m, 1h with a
// 3h cap. The original escalation constants were not recoverable, so these
// values are the documented choice.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Periods: []time.Duration{
			5 * time.Minute,
			15 * time.Minute,
			30 * time.Minute,
			time.Hour,
			3 * time.Hour,
		},
		MaxEscalation: 5,
	}
}

// Backoff returns the backoff duration for an escalation level.
func (c BackoffConfig) Backoff(level int) time.Duration {
	if level <= 0 || len(c.Periods) == 0 {
		return 0
	}
	if level > len(c.Periods) {
		return c.Periods[len(c.Periods)-1]
	}
	return c.Periods[level-1]
}

// Store optionally persists cookie state across restarts so the tracker is
// not cold on every boot. Persistence failures are logged, never fatal.
type Store interface {
	SaveCookies(ctx context.Context, indexerID int64, cookies map[string]string, expiry time.Time) error
	LoadCookies(ctx context.Context) (map[int64]CookieEntry, error)
	ClearCookies(ctx context.Context, indexerID int64) error
}

// CookieEntry is a persisted cookie set with its expiry.
type CookieEntry struct {
	Cookies map[string]string
	Expiry  time.Time
}

type providerState struct {
	Status
	cookies      map[string]string
	cookieExpiry time.Time
}

// Tracker owns all per-provider health state. Records are created lazily on
// first use and default to enabled. Pipeline runs for the same provider are
// serialized by the caller; the internal mutex guards against concurrent
// mutation regardless.
type Tracker struct {
	mu        sync.Mutex
	providers map[int64]*providerState
	config    BackoffConfig
	store     Store
	logger    zerolog.Logger
}

// NewTracker creates a tracker with the given backoff configuration.
func NewTracker(config BackoffConfig, logger zerolog.Logger) *Tracker {
	if len(config.Periods) == 0 {
		config = DefaultBackoffConfig()
	}
	return &Tracker{
		providers: make(map[int64]*providerState),
		config:    config,
		logger:    logger.With().Str("component", "indexer-status").Logger(),
	}
}

// WithStore attaches cookie persistence and warms the tracker from it.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store
	entries, err := store.LoadCookies(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to load persisted cookies")
		return t
	}
	for id, entry := range entries {
		state := t.stateLocked(id)
		state.cookies = entry.Cookies
		state.cookieExpiry = entry.Expiry
	}
	t.logger.Debug().Int("providers", len(entries)).Msg("Restored persisted cookies")
	return t
}

// RecordSuccess clears failure state for a provider: escalation back to
// zero, no disabled window. Cookies set during the run are preserved.
func (t *Tracker) RecordSuccess(indexerID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateLocked(indexerID)
	if state.EscalationLevel == 0 && state.DisabledTill == nil {
		return
	}
	state.InitialFailure = nil
	state.MostRecentFailure = nil
	state.EscalationLevel = 0
	state.DisabledTill = nil

	t.logger.Debug().Int64("indexerId", indexerID).Msg("Cleared indexer failure state")
}

// RecordFailure escalates a provider's failure state and disables it for
// the backoff window.
func (t *Tracker) RecordFailure(indexerID int64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateLocked(indexerID)
	if state.InitialFailure == nil {
		first := now
		state.InitialFailure = &first
	}
	recent := now
	state.MostRecentFailure = &recent

	if state.EscalationLevel < t.config.MaxEscalation {
		state.EscalationLevel++
	}

	backoff := t.config.Backoff(state.EscalationLevel)
	till := now.Add(backoff)
	state.DisabledTill = &till

	t.logger.Warn().
		Int64("indexerId", indexerID).
		Int("escalationLevel", state.EscalationLevel).
		Dur("backoff", backoff).
		Time("disabledTill", till).
		Msg("Recorded indexer failure, applying backoff")
}

// IsAvailable reports whether the provider may be used at the given time.
func (t *Tracker) IsAvailable(indexerID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[indexerID]
	if !ok || state.DisabledTill == nil {
		return true
	}
	return !now.Before(*state.DisabledTill)
}

// Snapshot returns a copy of the provider's tracked state.
func (t *Tracker) Snapshot(indexerID int64) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[indexerID]
	if !ok {
		return Status{IndexerID: indexerID}
	}
	out := state.Status
	if state.InitialFailure != nil {
		v := *state.InitialFailure
		out.InitialFailure = &v
	}
	if state.MostRecentFailure != nil {
		v := *state.MostRecentFailure
		out.MostRecentFailure = &v
	}
	if state.DisabledTill != nil {
		v := *state.DisabledTill
		out.DisabledTill = &v
	}
	return out
}

// Health summarizes a provider's state at the given time.
func (t *Tracker) Health(indexerID int64, now time.Time) Health {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[indexerID]
	if !ok {
		return HealthHealthy
	}
	if state.DisabledTill != nil && now.Before(*state.DisabledTill) {
		return HealthDisabled
	}
	if state.EscalationLevel > 0 {
		return HealthDegraded
	}
	return HealthHealthy
}

// SetCookies caches session cookies with their expiry and persists them when
// a store is attached.
func (t *Tracker) SetCookies(indexerID int64, cookies map[string]string, expiry time.Time) {
	t.mu.Lock()
	state := t.stateLocked(indexerID)
	state.cookies = cloneCookies(cookies)
	state.cookieExpiry = expiry
	store := t.store
	t.mu.Unlock()

	if store != nil {
		if err := store.SaveCookies(context.Background(), indexerID, cookies, expiry); err != nil {
			t.logger.Warn().Err(err).Int64("indexerId", indexerID).Msg("Failed to persist cookies")
		}
	}
}

// GetCookies returns cached cookies for a provider. Expired cookies are
// treated as absent.
func (t *Tracker) GetCookies(indexerID int64, now time.Time) (map[string]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[indexerID]
	if !ok || len(state.cookies) == 0 {
		return nil, false
	}
	if !state.cookieExpiry.IsZero() && !now.Before(state.cookieExpiry) {
		return nil, false
	}
	return cloneCookies(state.cookies), true
}

// ClearCookies drops a provider's cached session.
func (t *Tracker) ClearCookies(indexerID int64) {
	t.mu.Lock()
	state, ok := t.providers[indexerID]
	if ok {
		state.cookies = nil
		state.cookieExpiry = time.Time{}
	}
	store := t.store
	t.mu.Unlock()

	if store != nil {
		if err := store.ClearCookies(context.Background(), indexerID); err != nil {
			t.logger.Warn().Err(err).Int64("indexerId", indexerID).Msg("Failed to clear persisted cookies")
		}
	}
}

func (t *Tracker) stateLocked(indexerID int64) *providerState {
	state, ok := t.providers[indexerID]
	if !ok {
		state = &providerState{Status: Status{IndexerID: indexerID}}
		t.providers[indexerID] = state
	}
	return state
}

func cloneCookies(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
