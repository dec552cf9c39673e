package indexer

import (
	"context"
	"time"

	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

// Transport executes one outbound request. The host environment applies
// proxying and a provider-scoped user agent; this core only sees the result.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// RequestGenerator builds the request chain for a criteria variant.
// Construction never fails for data-shape issues: a criteria the provider
// cannot serve yields an empty chain, and only missing required settings
// surface as an error.
type RequestGenerator interface {
	BuildRequests(criteria *SearchCriteria) (*RequestChain, error)
}

// ResponseParser converts one raw response into normalized releases.
// Implementations are pure: no network access, no shared mutable state.
type ResponseParser interface {
	Parse(resp *Response) ([]ReleaseInfo, error)
}

// Authenticator performs a provider's login sequence and returns session
// cookies with their expiry. Providers without credentialed access leave the
// Provider.Auth field nil.
type Authenticator interface {
	Login(ctx context.Context, transport Transport) (cookies map[string]string, expiry time.Time, err error)
}

// Capabilities declares which search modes, parameters and categories a
// provider supports.
type Capabilities struct {
	SearchParams      []string `json:"searchParams"`
	TVSearchParams    []string `json:"tvSearchParams"`
	MovieSearchParams []string `json:"movieSearchParams"`
	MusicSearchParams []string `json:"musicSearchParams"`
	BookSearchParams  []string `json:"bookSearchParams"`

	SupportsRawSearch bool `json:"supportsRawSearch,omitempty"`

	// Categories is the provider's native-to-standard mapping table.
	Categories *categories.Mappings `json:"-"`

	// LimitsMax caps one page of results; LimitsDefault applies when the
	// caller requests nothing specific.
	LimitsMax     int `json:"limitsMax,omitempty"`
	LimitsDefault int `json:"limitsDefault,omitempty"`
}

// SupportsSearchMode reports whether a criteria variant can be served.
func (c *Capabilities) SupportsSearchMode(t SearchType) bool {
	switch t {
	case SearchTypeMovie:
		return len(c.MovieSearchParams) > 0
	case SearchTypeTV:
		return len(c.TVSearchParams) > 0
	case SearchTypeMusic:
		return len(c.MusicSearchParams) > 0
	case SearchTypeBook:
		return len(c.BookSearchParams) > 0
	default:
		return len(c.SearchParams) > 0
	}
}

// HasSearchParam reports whether the given mode declares a parameter.
func (c *Capabilities) HasSearchParam(t SearchType, param string) bool {
	var params []string
	switch t {
	case SearchTypeMovie:
		params = c.MovieSearchParams
	case SearchTypeTV:
		params = c.TVSearchParams
	case SearchTypeMusic:
		params = c.MusicSearchParams
	case SearchTypeBook:
		params = c.BookSearchParams
	default:
		params = c.SearchParams
	}
	for _, p := range params {
		if p == param {
			return true
		}
	}
	return false
}

// StandardCategoryTree exposes the mapped standard categories as a forest
// for capability introspection.
func (c *Capabilities) StandardCategoryTree() []categories.Category {
	if c.Categories == nil {
		return nil
	}
	return c.Categories.StandardTree()
}

// Provider is one configured search source: a protocol variant plus its
// configuration. Per-provider specialization is composition, not
// inheritance: quirky providers override the optional closure fields.
type Provider struct {
	Definition   Definition
	Capabilities *Capabilities

	Generator RequestGenerator
	Parser    ResponseParser
	Auth      Authenticator // nil for uncredentialed providers

	// ValidateDownload checks a downloaded payload. Torrent providers
	// verify the bytes form a well-formed torrent file. Nil skips checks.
	ValidateDownload func(data []byte) error

	// RetryDownload inspects a soft-rejected download response (e.g. a
	// token-exhaustion page served with a 200) and may return one
	// alternate link to try. The retry happens at most once.
	RetryDownload func(link string, resp *Response) (string, bool)

	// Warnings reports configuration advisories for the status surface,
	// such as a paid tier that has lapsed or is about to. Nil when the
	// protocol has none.
	Warnings func(now time.Time) []string
}
