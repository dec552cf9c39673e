// Package capabilities resolves and caches provider capability descriptors.
// Protocols with a discovery endpoint fetch once and persist the result;
// everything else serves static defaults.
package capabilities

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

// Fetcher performs the one-time capability discovery for a provider.
type Fetcher interface {
	FetchCapabilities(ctx context.Context) (*indexer.Capabilities, error)
}

// PersistFunc stores a freshly discovered descriptor into the provider's
// settings so later processes skip discovery. Persist failures are logged
// and otherwise ignored.
type PersistFunc func(key string, caps *indexer.Capabilities)

// Provider caches capability descriptors keyed by provider identity.
// Concurrent requests for the same uncached key collapse into one
// discovery fetch.
type Provider struct {
	mu      sync.RWMutex
	cache   map[string]*indexer.Capabilities
	group   singleflight.Group
	persist PersistFunc
	logger  zerolog.Logger
}

// NewProvider creates an empty capabilities cache.
func NewProvider(logger zerolog.Logger, persist PersistFunc) *Provider {
	return &Provider{
		cache:   make(map[string]*indexer.Capabilities),
		persist: persist,
		logger:  logger.With().Str("component", "capabilities").Logger(),
	}
}

// Get returns the descriptor for the given provider identity, fetching it
// via the fetcher on a cache miss. If discovery fails the static defaults
// are returned uncached so a later call can retry discovery.
func (p *Provider) Get(ctx context.Context, key string, fetcher Fetcher, defaults *indexer.Capabilities) (*indexer.Capabilities, error) {
	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if fetcher == nil {
		p.Put(key, defaults)
		return defaults, nil
	}

	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		// Re-check under the group: a prior flight may have filled it.
		p.mu.RLock()
		cached, ok := p.cache[key]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}

		caps, err := fetcher.FetchCapabilities(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache[key] = caps
		p.mu.Unlock()

		if p.persist != nil {
			p.persist(key, caps)
		}
		return caps, nil
	})
	if err != nil {
		if defaults == nil {
			return nil, err
		}
		p.logger.Warn().Err(err).Str("key", key).Msg("Capability discovery failed, using declared defaults")
		return defaults, nil
	}
	return result.(*indexer.Capabilities), nil
}

// Put seeds the cache, used when a persisted descriptor is already present
// in the provider's settings.
func (p *Provider) Put(key string, caps *indexer.Capabilities) {
	if caps == nil {
		return
	}
	p.mu.Lock()
	p.cache[key] = caps
	p.mu.Unlock()
}

// Invalidate drops a cached descriptor, called on settings change.
func (p *Provider) Invalidate(key string) {
	p.mu.Lock()
	delete(p.cache, key)
	p.mu.Unlock()
	p.logger.Debug().Str("key", key).Msg("Invalidated cached capabilities")
}
