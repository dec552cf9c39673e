// Package search fans one query out across every enabled provider and
// merges the results into a single deduplicated, sorted view.
package search

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/status"
)

const (
	// defaultProviderTimeout bounds one provider's round trip so a slow
	// site cannot hold the whole aggregate search open.
	defaultProviderTimeout = 30 * time.Second
	defaultGlobalTimeout   = 60 * time.Second
)

// Result is the merged outcome of one aggregate search.
type Result struct {
	Releases         []indexer.ReleaseInfo `json:"releases"`
	TotalResults     int                   `json:"totalResults"`
	IndexersSearched int                   `json:"indexersSearched"`
	Errors           []ProviderError       `json:"errors,omitempty"`
}

// ProviderError is one provider's failure within an aggregate search. The
// search itself still succeeds with whatever the other providers returned.
type ProviderError struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexer"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// Fetcher runs one provider search. *indexer.Pipeline is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, prov *indexer.Provider, criteria *indexer.SearchCriteria) ([]indexer.ReleaseInfo, error)
}

// Service coordinates concurrent searches across providers.
type Service struct {
	pipeline Fetcher
	tracker  *status.Tracker
	logger   zerolog.Logger

	providerTimeout time.Duration
	globalTimeout   time.Duration
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithProviderTimeout overrides the per-provider deadline.
func WithProviderTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.providerTimeout = d }
}

// WithGlobalTimeout overrides the whole-search deadline.
func WithGlobalTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.globalTimeout = d }
}

// NewService creates the aggregate search service.
func NewService(pipeline Fetcher, tracker *status.Tracker, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		pipeline:        pipeline,
		tracker:         tracker,
		logger:          logger.With().Str("component", "search").Logger(),
		providerTimeout: defaultProviderTimeout,
		globalTimeout:   defaultGlobalTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type providerOutcome struct {
	provider *indexer.Provider
	releases []indexer.ReleaseInfo
	err      error
}

// Search runs the criteria against every enabled provider concurrently and
// merges the results. Disabled providers are skipped silently; individual
// failures are collected per provider without failing the aggregate.
func (s *Service) Search(ctx context.Context, providers []*indexer.Provider, criteria *indexer.SearchCriteria) (*Result, error) {
	searchID := uuid.New().String()
	log := s.logger.With().Str("search_id", searchID).Logger()

	ctx, cancel := context.WithTimeout(ctx, s.globalTimeout)
	defer cancel()

	eligible := make([]*indexer.Provider, 0, len(providers))
	now := time.Now()
	for _, prov := range providers {
		if !prov.Definition.Enabled {
			continue
		}
		if !s.tracker.IsAvailable(prov.Definition.ID, now) {
			log.Debug().
				Str("indexer", prov.Definition.Name).
				Msg("skipping provider in backoff")
			continue
		}
		eligible = append(eligible, prov)
	}

	log.Info().
		Int("providers", len(eligible)).
		Str("type", string(criteria.Type)).
		Str("query", criteria.Query).
		Msg("starting aggregate search")

	outcomes := make(chan providerOutcome, len(eligible))
	var wg sync.WaitGroup
	for _, prov := range eligible {
		wg.Add(1)
		go func(prov *indexer.Provider) {
			defer wg.Done()
			releases, err := s.searchOne(ctx, prov, criteria)
			outcomes <- providerOutcome{provider: prov, releases: releases, err: err}
		}(prov)
	}
	wg.Wait()
	close(outcomes)

	result := &Result{IndexersSearched: len(eligible)}
	merged := make([]indexer.ReleaseInfo, 0)
	for outcome := range outcomes {
		if outcome.err != nil {
			if errors.Is(outcome.err, indexer.ErrDisabled) {
				continue
			}
			result.Errors = append(result.Errors, ProviderError{
				IndexerID:   outcome.provider.Definition.ID,
				IndexerName: outcome.provider.Definition.Name,
				Code:        indexer.ErrorCode(outcome.err),
				Message:     outcome.err.Error(),
			})
			continue
		}
		merged = append(merged, outcome.releases...)
	}

	result.Releases = s.merge(merged, providerPriorities(eligible))
	result.TotalResults = len(result.Releases)

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].IndexerID < result.Errors[j].IndexerID
	})

	log.Info().
		Int("results", result.TotalResults).
		Int("errors", len(result.Errors)).
		Msg("aggregate search complete")
	return result, nil
}

// searchOne runs one provider under its own deadline. Deadline expiry is
// classified as a timeout and counts against the provider's health.
func (s *Service) searchOne(ctx context.Context, prov *indexer.Provider, criteria *indexer.SearchCriteria) ([]indexer.ReleaseInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	releases, err := s.pipeline.Fetch(ctx, prov, criteria)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && indexer.ErrorCode(err) != indexer.ErrCodeTimeout {
			err = indexer.NewTimeoutError(&prov.Definition, err)
			s.tracker.RecordFailure(prov.Definition.ID, time.Now())
		}
		return nil, err
	}
	return releases, nil
}

// merge deduplicates by GUID, first hit wins, with releases ordered by
// provider priority before deduplication so ties break toward the
// higher-priority source. Final order is publish date, newest first.
func (s *Service) merge(releases []indexer.ReleaseInfo, priorities map[int64]int) []indexer.ReleaseInfo {
	sort.SliceStable(releases, func(i, j int) bool {
		return priorities[releases[i].IndexerID] < priorities[releases[j].IndexerID]
	})

	seen := make(map[string]struct{}, len(releases))
	out := make([]indexer.ReleaseInfo, 0, len(releases))
	for _, r := range releases {
		key := r.GUID
		if key == "" {
			out = append(out, r)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishDate.After(out[j].PublishDate)
	})
	return out
}

func providerPriorities(providers []*indexer.Provider) map[int64]int {
	m := make(map[int64]int, len(providers))
	for _, prov := range providers {
		m[prov.Definition.ID] = prov.Definition.Priority
	}
	return m
}
