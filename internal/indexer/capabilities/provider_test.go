package capabilities

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

type countingFetcher struct {
	calls atomic.Int32
	caps  *indexer.Capabilities
	err   error
	gate  chan struct{} // optional: holds the fetch open
}

func (f *countingFetcher) FetchCapabilities(ctx context.Context) (*indexer.Capabilities, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.caps, f.err
}

func TestGet_CachesDiscovery(t *testing.T) {
	fetcher := &countingFetcher{caps: &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}}}
	p := NewProvider(zerolog.Nop(), nil)

	first, err := p.Get(context.Background(), "newznab:https://a", fetcher, nil)
	require.NoError(t, err)
	second, err := p.Get(context.Background(), "newznab:https://a", fetcher, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestGet_ConcurrentCallsCollapse(t *testing.T) {
	fetcher := &countingFetcher{
		caps: &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}},
		gate: make(chan struct{}),
	}
	p := NewProvider(zerolog.Nop(), nil)

	var wg sync.WaitGroup
	results := make([]*indexer.Capabilities, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caps, err := p.Get(context.Background(), "shared", fetcher, nil)
			require.NoError(t, err)
			results[i] = caps
		}(i)
	}

	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load(), "exactly one discovery fetch")
	for _, caps := range results {
		assert.Same(t, results[0], caps)
	}
}

func TestGet_FallsBackToDefaultsOnDiscoveryFailure(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("caps endpoint unreachable")}
	defaults := &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}}
	p := NewProvider(zerolog.Nop(), nil)

	caps, err := p.Get(context.Background(), "flaky", fetcher, defaults)
	require.NoError(t, err)
	assert.Same(t, defaults, caps)

	// Failure is not cached: the next call retries discovery.
	fetcher.err = nil
	fetcher.caps = &indexer.Capabilities{SearchParams: []string{indexer.ParamQ, indexer.ParamImdbID}}
	caps, err = p.Get(context.Background(), "flaky", fetcher, defaults)
	require.NoError(t, err)
	assert.Same(t, fetcher.caps, caps)
}

func TestGet_NoDefaultsSurfacesError(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("boom")}
	p := NewProvider(zerolog.Nop(), nil)

	_, err := p.Get(context.Background(), "broken", fetcher, nil)
	assert.Error(t, err)
}

func TestGet_PersistCallbackInvoked(t *testing.T) {
	fetcher := &countingFetcher{caps: &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}}}

	var persisted atomic.Int32
	p := NewProvider(zerolog.Nop(), func(key string, caps *indexer.Capabilities) {
		persisted.Add(1)
	})

	_, err := p.Get(context.Background(), "k", fetcher, nil)
	require.NoError(t, err)
	_, err = p.Get(context.Background(), "k", fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), persisted.Load())
}

func TestInvalidate_ForcesRediscovery(t *testing.T) {
	fetcher := &countingFetcher{caps: &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}}}
	p := NewProvider(zerolog.Nop(), nil)

	_, err := p.Get(context.Background(), "k", fetcher, nil)
	require.NoError(t, err)

	p.Invalidate("k")

	_, err = p.Get(context.Background(), "k", fetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestPut_SeedsFromPersistedSettings(t *testing.T) {
	fetcher := &countingFetcher{caps: &indexer.Capabilities{}}
	p := NewProvider(zerolog.Nop(), nil)

	persisted := &indexer.Capabilities{SearchParams: []string{indexer.ParamQ}}
	p.Put("warm", persisted)

	caps, err := p.Get(context.Background(), "warm", fetcher, nil)
	require.NoError(t, err)
	assert.Same(t, persisted, caps)
	assert.Equal(t, int32(0), fetcher.calls.Load(), "no discovery when settings carry capabilities")
}
