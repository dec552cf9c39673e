package htmlscrape

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

// Generator builds search page requests. Scraped sites take text queries
// only, so every criteria variant collapses to its text form; ID-only
// criteria produce an empty chain.
type Generator struct {
	def      *indexer.Definition
	settings Settings
}

// NewGenerator creates a request generator for one scraped site.
func NewGenerator(def *indexer.Definition, settings Settings) *Generator {
	return &Generator{def: def, settings: settings}
}

// BuildRequests constructs the single-tier chain for the criteria.
func (g *Generator) BuildRequests(criteria *indexer.SearchCriteria) (*indexer.RequestChain, error) {
	if err := g.settings.Validate(); err != nil {
		return nil, indexer.NewConfigError(g.def, err.Error())
	}

	chain := indexer.NewRequestChain(indexer.TierFallback)
	query := textQuery(criteria)
	if query == "" && !criteria.IsRSS() {
		return chain, nil
	}
	if query != "" && len(query) < g.def.MinQueryLength {
		return chain, nil
	}

	params := url.Values{}
	if query != "" {
		params.Set(g.queryParam(), query)
	}
	if g.settings.CatParam != "" && len(criteria.Categories) > 0 {
		native := nativeCategories(criteria.Categories)
		if len(native) > 0 {
			params.Set(g.settings.CatParam, strings.Join(native, ","))
		}
	}

	u := strings.TrimSuffix(g.def.BaseURL, "/") + g.settings.SearchPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	chain.AddTier()
	chain.Add(indexer.NewRequest(u))
	return chain, nil
}

func (g *Generator) queryParam() string {
	if g.settings.QueryParam != "" {
		return g.settings.QueryParam
	}
	return "q"
}

// textQuery flattens any criteria variant to the site's only query surface.
func textQuery(criteria *indexer.SearchCriteria) string {
	switch criteria.Type {
	case indexer.SearchTypeMusic:
		if s := strings.TrimSpace(criteria.Artist + " " + criteria.Album); s != "" {
			return s
		}
	case indexer.SearchTypeBook:
		if s := strings.TrimSpace(criteria.Author + " " + criteria.Title); s != "" {
			return s
		}
	}
	return strings.TrimSpace(criteria.Query)
}

func nativeCategories(standard []int) []string {
	out := make([]string, 0, len(standard))
	seen := make(map[int]struct{}, len(standard))
	for _, id := range standard {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, strconv.Itoa(id))
	}
	return out
}
