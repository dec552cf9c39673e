package indexer

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
	"github.com/fetcharr/fetcharr/internal/indexer/status"
)

// HistoryRecorder receives pipeline outcome events. Recording failures are
// logged and never affect the pipeline result.
type HistoryRecorder interface {
	Record(ctx context.Context, ev history.Event) error
}

// Pipeline drives one provider's search/fetch/download calls: availability
// check, authentication, request building, tiered execution, parsing and
// aggregation. One pipeline serves any number of providers; per-provider
// state lives in the status tracker.
type Pipeline struct {
	transport Transport
	status    *status.Tracker
	history   HistoryRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory attaches an event sink for query/rss/auth/grab outcomes.
func WithHistory(recorder HistoryRecorder) Option {
	return func(p *Pipeline) { p.history = recorder }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates an execution pipeline.
func NewPipeline(transport Transport, tracker *status.Tracker, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		transport: transport,
		status:    tracker,
		logger:    logger.With().Str("component", "indexer-pipeline").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type sourceKey struct{}

// WithSource tags a context with the requesting application, recorded in
// history event data for statistics.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok {
		return s
	}
	return ""
}

// Fetch runs one search call against a provider and returns normalized,
// deduplicated releases sorted newest first.
func (p *Pipeline) Fetch(ctx context.Context, prov *Provider, criteria *SearchCriteria) ([]ReleaseInfo, error) {
	eventType := history.EventQuery
	if criteria.IsRSS() {
		eventType = history.EventRss
	}
	return p.fetch(ctx, prov, criteria, eventType)
}

// FetchRecent browses the provider's feed without a query, the RSS case.
func (p *Pipeline) FetchRecent(ctx context.Context, prov *Provider) ([]ReleaseInfo, error) {
	return p.fetch(ctx, prov, &SearchCriteria{Type: SearchTypeBasic}, history.EventRss)
}

func (p *Pipeline) fetch(ctx context.Context, prov *Provider, criteria *SearchCriteria, eventType history.EventType) ([]ReleaseInfo, error) {
	def := &prov.Definition
	now := p.now()

	if !p.status.IsAvailable(def.ID, now) {
		snap := p.status.Snapshot(def.ID)
		until := now
		if snap.DisabledTill != nil {
			until = *snap.DisabledTill
		}
		p.logger.Debug().Int64("indexerId", def.ID).Time("until", until).Msg("Provider disabled, skipping")
		return nil, NewDisabledError(def, until)
	}

	if err := p.authenticate(ctx, prov); err != nil {
		return nil, err
	}

	chain, err := prov.Generator.BuildRequests(criteria)
	if err != nil {
		return nil, err
	}
	if chain == nil || chain.Empty() {
		// A criteria the provider cannot serve is a successful no-op.
		p.logger.Debug().Int64("indexerId", def.ID).Str("type", string(criteria.Type)).Msg("Empty request chain")
		return []ReleaseInfo{}, nil
	}

	start := p.now()
	releases, execErr := p.executeChain(ctx, prov, chain)
	elapsed := p.now().Sub(start)

	p.recordEvent(ctx, def, eventType, execErr == nil, elapsed, map[string]string{
		history.DataQuery: criteria.Query,
	})

	if execErr != nil {
		return nil, execErr
	}
	return p.aggregate(prov, releases), nil
}

// executeChain walks the tiers. One status success is recorded on any
// transport success; one failure only when every tier exhausted without a
// usable response.
func (p *Pipeline) executeChain(ctx context.Context, prov *Provider, chain *RequestChain) ([]ReleaseInfo, error) {
	def := &prov.Definition

	var (
		all              []ReleaseInfo
		parsedAny        bool
		transportSuccess bool
		lastTransportErr error
		lastParseErr     error
	)

	for _, tier := range chain.Tiers() {
		tierParsed := false

		// Pages within a tier run in order: later pages may depend on
		// prior response state.
		for _, req := range tier {
			if cookies, ok := p.status.GetCookies(def.ID, p.now()); ok {
				req.SetCookies(cookies)
			}

			resp, err := p.execute(ctx, def, req)
			if err != nil {
				lastTransportErr = err
				continue
			}
			transportSuccess = true

			releases, parseErr := prov.Parser.Parse(resp)
			if parseErr != nil {
				lastParseErr = parseErr
				p.logger.Warn().
					Err(parseErr).
					Int64("indexerId", def.ID).
					Int("status", resp.StatusCode).
					Str("contentType", resp.ContentType()).
					Str("body", resp.BodyExcerpt(256)).
					Msg("Failed to parse response")
				continue
			}
			parsedAny = true
			tierParsed = true
			all = append(all, releases...)
		}

		if chain.Mode() == TierFallback && tierParsed {
			break
		}
	}

	if !transportSuccess {
		p.status.RecordFailure(def.ID, p.now())
		if lastTransportErr != nil {
			var typed *Error
			if errors.As(lastTransportErr, &typed) {
				return nil, typed
			}
			return nil, NewTransportError(def, lastTransportErr)
		}
		return nil, NewTransportError(def, nil)
	}

	p.status.RecordSuccess(def.ID)

	// Partial results are kept; only a total parse failure surfaces.
	if !parsedAny && lastParseErr != nil {
		return nil, lastParseErr
	}
	return all, nil
}

// execute performs one request, translating transport-level failures
// (network errors, deadline expiry, non-2xx status) to typed errors.
func (p *Pipeline) execute(ctx context.Context, def *Definition, req *Request) (*Response, error) {
	resp, err := p.transport.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, NewTimeoutError(def, err)
		}
		p.logger.Warn().Err(err).Int64("indexerId", def.ID).Str("url", req.URL).Msg("Request failed")
		return nil, NewTransportError(def, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn().
			Int64("indexerId", def.ID).
			Int("status", resp.StatusCode).
			Str("url", req.URL).
			Msg("Request returned error status")
		return nil, NewTransportError(def, errors.New("unexpected status "+strconv.Itoa(resp.StatusCode)))
	}
	return resp, nil
}

// authenticate ensures a valid session for credentialed providers, reusing
// cached cookies when they have not expired.
func (p *Pipeline) authenticate(ctx context.Context, prov *Provider) error {
	if prov.Auth == nil {
		return nil
	}
	def := &prov.Definition

	if _, ok := p.status.GetCookies(def.ID, p.now()); ok {
		return nil
	}

	start := p.now()
	cookies, expiry, err := prov.Auth.Login(ctx, p.transport)
	elapsed := p.now().Sub(start)

	p.recordEvent(ctx, def, history.EventAuth, err == nil, elapsed, nil)

	if err != nil {
		p.status.RecordFailure(def.ID, p.now())
		p.logger.Warn().Err(err).Int64("indexerId", def.ID).Msg("Login failed")
		return NewAuthError(def, err)
	}

	p.status.SetCookies(def.ID, cookies, expiry)
	p.logger.Debug().Int64("indexerId", def.ID).Time("expiry", expiry).Msg("Login successful")
	return nil
}

// aggregate deduplicates by GUID (first occurrence wins), fills category
// fallbacks and sorts newest first.
func (p *Pipeline) aggregate(prov *Provider, releases []ReleaseInfo) []ReleaseInfo {
	seen := make(map[string]struct{}, len(releases))
	out := make([]ReleaseInfo, 0, len(releases))

	for _, release := range releases {
		if release.GUID == "" {
			release.GUID = firstNonEmpty(release.InfoURL, release.DownloadURL, release.MagnetURL)
		}
		if _, dup := seen[release.GUID]; dup {
			continue
		}
		seen[release.GUID] = struct{}{}

		release.IndexerID = prov.Definition.ID
		release.IndexerName = prov.Definition.Name
		release.Protocol = prov.Definition.Protocol
		if len(release.Categories) == 0 {
			release.Categories = []int{categories.Fallback().ID}
		}
		if release.Peers == 0 && (release.Seeders > 0 || release.Leechers > 0) {
			release.Peers = release.Seeders + release.Leechers
		}
		release.PublishDate = release.PublishDate.UTC()

		out = append(out, release)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishDate.After(out[j].PublishDate)
	})
	return out
}

// Download fetches the raw payload behind a release link, validating it per
// the provider's protocol. A soft rejection (e.g. a token-exhaustion page
// served with a 200) may be retried once with an alternate link.
func (p *Pipeline) Download(ctx context.Context, prov *Provider, link string) ([]byte, error) {
	def := &prov.Definition
	now := p.now()

	if !p.status.IsAvailable(def.ID, now) {
		snap := p.status.Snapshot(def.ID)
		until := now
		if snap.DisabledTill != nil {
			until = *snap.DisabledTill
		}
		return nil, NewDisabledError(def, until)
	}

	if err := p.authenticate(ctx, prov); err != nil {
		return nil, err
	}

	start := p.now()
	resp, err := p.downloadOnce(ctx, prov, link)
	if err == nil && prov.RetryDownload != nil {
		if altLink, retry := prov.RetryDownload(link, resp); retry {
			p.logger.Debug().Int64("indexerId", def.ID).Str("link", altLink).Msg("Download soft-rejected, retrying with alternate link")
			resp, err = p.downloadOnce(ctx, prov, altLink)
		}
	}
	elapsed := p.now().Sub(start)

	if err != nil {
		p.status.RecordFailure(def.ID, p.now())
		p.recordEvent(ctx, def, history.EventGrab, false, elapsed, nil)
		return nil, err
	}

	if prov.ValidateDownload != nil {
		if vErr := prov.ValidateDownload(resp.Body); vErr != nil {
			p.recordEvent(ctx, def, history.EventGrab, false, elapsed, nil)
			return nil, NewValidationError(def, "invalid download payload", vErr)
		}
	}

	p.status.RecordSuccess(def.ID)
	p.recordEvent(ctx, def, history.EventGrab, true, elapsed, nil)
	return resp.Body, nil
}

func (p *Pipeline) downloadOnce(ctx context.Context, prov *Provider, link string) (*Response, error) {
	req := NewRequest(link)
	if cookies, ok := p.status.GetCookies(prov.Definition.ID, p.now()); ok {
		req.SetCookies(cookies)
	}
	return p.execute(ctx, &prov.Definition, req)
}

// Test performs a minimal capability and authentication round-trip without
// running a full search. Capability mismatches surface here, at
// configuration time, rather than at search time.
func (p *Pipeline) Test(ctx context.Context, prov *Provider) error {
	def := &prov.Definition

	if prov.Capabilities == nil || noSearchModes(prov.Capabilities) {
		return NewCapabilityError(def, "provider declares no usable search modes")
	}

	if prov.Auth != nil {
		p.status.ClearCookies(def.ID)
		if err := p.authenticate(ctx, prov); err != nil {
			return err
		}
		return nil
	}

	// Uncredentialed providers: verify one feed page round-trips.
	chain, err := prov.Generator.BuildRequests(&SearchCriteria{Type: SearchTypeBasic, Limit: 1})
	if err != nil {
		return err
	}
	tiers := chain.Tiers()
	if len(tiers) == 0 {
		return nil
	}
	resp, err := p.execute(ctx, def, tiers[0][0])
	if err != nil {
		return err
	}
	if _, err := prov.Parser.Parse(resp); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) recordEvent(ctx context.Context, def *Definition, eventType history.EventType, successful bool, elapsed time.Duration, extra map[string]string) {
	if p.history == nil {
		return
	}

	data := map[string]string{
		history.DataElapsedTime: strconv.FormatInt(elapsed.Milliseconds(), 10),
		history.DataHost:        hostOf(def.BaseURL),
	}
	if source := sourceFrom(ctx); source != "" {
		data[history.DataSource] = source
	}
	for k, v := range extra {
		if v != "" {
			data[k] = v
		}
	}

	ev := history.Event{
		IndexerID:  def.ID,
		Date:       p.now().UTC(),
		EventType:  eventType,
		Successful: successful,
		Data:       data,
	}
	if err := p.history.Record(ctx, ev); err != nil {
		p.logger.Warn().Err(err).Int64("indexerId", def.ID).Msg("Failed to record history event")
	}
}

func noSearchModes(caps *Capabilities) bool {
	return len(caps.SearchParams) == 0 &&
		len(caps.TVSearchParams) == 0 &&
		len(caps.MovieSearchParams) == 0 &&
		len(caps.MusicSearchParams) == 0 &&
		len(caps.BookSearchParams) == 0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
