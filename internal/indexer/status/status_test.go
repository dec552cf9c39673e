package status

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() *Tracker {
	return NewTracker(DefaultBackoffConfig(), zerolog.Nop())
}

func TestRecordFailure_MonotonicBackoff(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var prev time.Time
	for i := 0; i < 8; i++ {
		tr.RecordFailure(7, now)
		snap := tr.Snapshot(7)
		require.NotNil(t, snap.DisabledTill)
		if i > 0 {
			assert.False(t, snap.DisabledTill.Before(prev),
				"disabledTill decreased at failure %d", i+1)
		}
		prev = *snap.DisabledTill
	}

	snap := tr.Snapshot(7)
	assert.Equal(t, 5, snap.EscalationLevel, "escalation capped at MaxEscalation")
	assert.Equal(t, now.Add(3*time.Hour), *snap.DisabledTill)
}

func TestRecordFailure_SetsInitialFailureOnce(t *testing.T) {
	tr := newTestTracker()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)

	tr.RecordFailure(1, first)
	tr.RecordFailure(1, second)

	snap := tr.Snapshot(1)
	require.NotNil(t, snap.InitialFailure)
	require.NotNil(t, snap.MostRecentFailure)
	assert.Equal(t, first, *snap.InitialFailure)
	assert.Equal(t, second, *snap.MostRecentFailure)
}

func TestRecordSuccess_ResetsState(t *testing.T) {
	tr := newTestTracker()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		tr.RecordFailure(3, now)
	}
	tr.RecordSuccess(3)

	snap := tr.Snapshot(3)
	assert.Zero(t, snap.EscalationLevel)
	assert.Nil(t, snap.DisabledTill)
	assert.Nil(t, snap.InitialFailure)
	assert.Nil(t, snap.MostRecentFailure)
	assert.True(t, tr.IsAvailable(3, now))
}

func TestIsAvailable_WindowBoundaries(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.RecordFailure(5, now) // disabled until now+5m
	snap := tr.Snapshot(5)
	require.NotNil(t, snap.DisabledTill)

	assert.False(t, tr.IsAvailable(5, now.Add(30*time.Second)))
	assert.False(t, tr.IsAvailable(5, snap.DisabledTill.Add(-time.Second)))
	assert.True(t, tr.IsAvailable(5, *snap.DisabledTill))
	assert.True(t, tr.IsAvailable(5, snap.DisabledTill.Add(time.Second)))
}

func TestIsAvailable_UnknownProviderDefaultsEnabled(t *testing.T) {
	tr := newTestTracker()
	assert.True(t, tr.IsAvailable(99, time.Now()))
	assert.Equal(t, HealthHealthy, tr.Health(99, time.Now()))
}

func TestHealth_States(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.RecordFailure(2, now)
	assert.Equal(t, HealthDisabled, tr.Health(2, now.Add(time.Minute)))

	// Past the window but still carrying failures.
	assert.Equal(t, HealthDegraded, tr.Health(2, now.Add(6*time.Minute)))

	tr.RecordSuccess(2)
	assert.Equal(t, HealthHealthy, tr.Health(2, now.Add(6*time.Minute)))
}

func TestCookies_ExpiryTreatedAsAbsent(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.SetCookies(4, map[string]string{"session": "abc"}, now.Add(time.Hour))

	got, ok := tr.GetCookies(4, now)
	require.True(t, ok)
	assert.Equal(t, "abc", got["session"])

	_, ok = tr.GetCookies(4, now.Add(2*time.Hour))
	assert.False(t, ok)
}

func TestCookies_SurviveSuccessReset(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.SetCookies(4, map[string]string{"session": "abc"}, now.Add(time.Hour))
	tr.RecordFailure(4, now)
	tr.RecordSuccess(4)

	got, ok := tr.GetCookies(4, now)
	require.True(t, ok)
	assert.Equal(t, "abc", got["session"])
}

func TestClearCookies(t *testing.T) {
	tr := newTestTracker()
	now := time.Now().UTC()

	tr.SetCookies(4, map[string]string{"session": "abc"}, now.Add(time.Hour))
	tr.ClearCookies(4)

	_, ok := tr.GetCookies(4, now)
	assert.False(t, ok)
}

func TestBackoffConfig_LadderAndCap(t *testing.T) {
	cfg := DefaultBackoffConfig()

	assert.Equal(t, time.Duration(0), cfg.Backoff(0))
	assert.Equal(t, 5*time.Minute, cfg.Backoff(1))
	assert.Equal(t, 15*time.Minute, cfg.Backoff(2))
	assert.Equal(t, 30*time.Minute, cfg.Backoff(3))
	assert.Equal(t, time.Hour, cfg.Backoff(4))
	assert.Equal(t, 3*time.Hour, cfg.Backoff(5))
	assert.Equal(t, 3*time.Hour, cfg.Backoff(12))
}
