package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/status"
)

type fakeFetcher struct {
	results map[int64][]indexer.ReleaseInfo
	errs    map[int64]error
	delays  map[int64]time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, prov *indexer.Provider, _ *indexer.SearchCriteria) ([]indexer.ReleaseInfo, error) {
	if delay := f.delays[prov.Definition.ID]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[prov.Definition.ID]; err != nil {
		return nil, err
	}
	return f.results[prov.Definition.ID], nil
}

func provider(id int64, name string, priority int) *indexer.Provider {
	return &indexer.Provider{Definition: indexer.Definition{
		ID: id, Name: name, Priority: priority, Enabled: true,
		Protocol: indexer.ProtocolTorrent,
	}}
}

func release(guid, title string, age time.Duration) indexer.ReleaseInfo {
	return indexer.ReleaseInfo{
		GUID:        guid,
		Title:       title,
		PublishDate: time.Now().Add(-age).UTC(),
	}
}

func newTestService(fetcher Fetcher, tracker *status.Tracker, opts ...ServiceOption) *Service {
	return NewService(fetcher, tracker, zerolog.Nop(), opts...)
}

func TestSearch_MergesAcrossProviders(t *testing.T) {
	p1, p2 := provider(1, "alpha", 10), provider(2, "beta", 20)
	fetcher := &fakeFetcher{results: map[int64][]indexer.ReleaseInfo{
		1: {release("g1", "Release.A", time.Hour), release("g2", "Release.B", 3*time.Hour)},
		2: {release("g3", "Release.C", 2*time.Hour)},
	}}

	svc := newTestService(fetcher, status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop()))
	result, err := svc.Search(context.Background(), []*indexer.Provider{p1, p2},
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "release"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.IndexersSearched)
	assert.Equal(t, 3, result.TotalResults)
	assert.Empty(t, result.Errors)

	// Newest first across providers.
	titles := []string{result.Releases[0].Title, result.Releases[1].Title, result.Releases[2].Title}
	assert.Equal(t, []string{"Release.A", "Release.C", "Release.B"}, titles)
}

func TestSearch_DeduplicatesByGUIDPreferringPriority(t *testing.T) {
	low := provider(1, "low", 50)
	high := provider(2, "high", 10)
	fetcher := &fakeFetcher{results: map[int64][]indexer.ReleaseInfo{
		1: {{GUID: "shared", Title: "From.Low", IndexerID: 1, IndexerName: "low"}},
		2: {{GUID: "shared", Title: "From.High", IndexerID: 2, IndexerName: "high"}},
	}}

	svc := newTestService(fetcher, status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop()))
	result, err := svc.Search(context.Background(), []*indexer.Provider{low, high},
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "x"})
	require.NoError(t, err)

	require.Len(t, result.Releases, 1)
	assert.Equal(t, "From.High", result.Releases[0].Title,
		"lower priority value wins the duplicate")
}

func TestSearch_SlowProviderTimesOutOthersSucceed(t *testing.T) {
	fast, slow := provider(1, "fast", 10), provider(2, "slow", 10)
	fetcher := &fakeFetcher{
		results: map[int64][]indexer.ReleaseInfo{1: {release("g1", "Fast.Release", time.Hour)}},
		delays:  map[int64]time.Duration{2: 500 * time.Millisecond},
	}

	tracker := status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop())
	svc := newTestService(fetcher, tracker,
		WithProviderTimeout(50*time.Millisecond),
		WithGlobalTimeout(time.Second))

	result, err := svc.Search(context.Background(), []*indexer.Provider{fast, slow},
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalResults)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(2), result.Errors[0].IndexerID)
	assert.Equal(t, indexer.ErrCodeTimeout, result.Errors[0].Code)

	st := tracker.Snapshot(2)
	assert.NotNil(t, st.MostRecentFailure, "timeout should count against provider health")
}

func TestSearch_SkipsDisabledAndBackoffProviders(t *testing.T) {
	enabled := provider(1, "enabled", 10)
	disabled := provider(2, "disabled", 10)
	disabled.Definition.Enabled = false
	backoff := provider(3, "backoff", 10)

	tracker := status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop())
	tracker.RecordFailure(3, time.Now())

	fetcher := &fakeFetcher{results: map[int64][]indexer.ReleaseInfo{
		1: {release("g1", "Only.One", time.Hour)},
	}}

	svc := newTestService(fetcher, tracker)
	result, err := svc.Search(context.Background(),
		[]*indexer.Provider{enabled, disabled, backoff},
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.IndexersSearched)
	assert.Equal(t, 1, result.TotalResults)
	assert.Empty(t, result.Errors)
}

func TestSearch_ProviderErrorDoesNotFailAggregate(t *testing.T) {
	good, bad := provider(1, "good", 10), provider(2, "bad", 10)
	fetcher := &fakeFetcher{
		results: map[int64][]indexer.ReleaseInfo{1: {release("g1", "Result", time.Hour)}},
		errs: map[int64]error{
			2: indexer.NewTransportError(&bad.Definition, errors.New("connection refused")),
		},
	}

	svc := newTestService(fetcher, status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop()))
	result, err := svc.Search(context.Background(), []*indexer.Provider{good, bad},
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalResults)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, indexer.ErrCodeTransport, result.Errors[0].Code)
	assert.Equal(t, "bad", result.Errors[0].IndexerName)
}

func TestSearch_NoProviders(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, status.NewTracker(status.DefaultBackoffConfig(), zerolog.Nop()))
	result, err := svc.Search(context.Background(), nil,
		&indexer.SearchCriteria{Type: indexer.SearchTypeBasic, Query: "x"})
	require.NoError(t, err)
	assert.Zero(t, result.IndexersSearched)
	assert.Empty(t, result.Releases)
}
