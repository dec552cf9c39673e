package newznab

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

const (
	defaultPageSize = 100
	maxPages        = 10
)

// Generator builds Newznab API request chains. ID-based queries go into the
// first tier with a text query fallback tier behind them, so providers with
// incomplete ID coverage still return results.
type Generator struct {
	def      *indexer.Definition
	settings Settings
	caps     *indexer.Capabilities
}

// NewGenerator creates a request generator for one configured provider.
func NewGenerator(def *indexer.Definition, settings Settings, caps *indexer.Capabilities) *Generator {
	return &Generator{def: def, settings: settings, caps: caps}
}

// BuildRequests constructs the tiered request chain for the criteria.
// Criteria the provider cannot express produce an empty chain, never an
// error: a season search without any series identifier, or a text query
// shorter than the provider minimum, yields nothing to send.
func (g *Generator) BuildRequests(criteria *indexer.SearchCriteria) (*indexer.RequestChain, error) {
	if err := g.settings.Validate(); err != nil {
		return nil, indexer.NewConfigError(g.def, err.Error())
	}

	chain := indexer.NewRequestChain(indexer.TierFallback)
	if criteria.Query != "" && len(strings.TrimSpace(criteria.Query)) < g.def.MinQueryLength {
		return chain, nil
	}

	switch criteria.Type {
	case indexer.SearchTypeMovie:
		g.movieRequests(chain, criteria)
	case indexer.SearchTypeTV:
		g.tvRequests(chain, criteria)
	case indexer.SearchTypeMusic:
		g.musicRequests(chain, criteria)
	case indexer.SearchTypeBook:
		g.bookRequests(chain, criteria)
	default:
		g.basicRequests(chain, criteria)
	}
	return chain, nil
}

func (g *Generator) movieRequests(chain *indexer.RequestChain, criteria *indexer.SearchCriteria) {
	idParams := url.Values{}
	if criteria.ImdbID != "" && g.caps.HasSearchParam(indexer.SearchTypeMovie, indexer.ParamImdbID) {
		idParams.Set("imdbid", strings.TrimPrefix(criteria.ImdbID, "tt"))
	}
	if criteria.TmdbID > 0 && g.caps.HasSearchParam(indexer.SearchTypeMovie, indexer.ParamTmdbID) {
		idParams.Set("tmdbid", strconv.Itoa(criteria.TmdbID))
	}
	if len(idParams) > 0 {
		chain.AddTier()
		g.addPaged(chain, "movie", idParams, criteria)
	}
	if criteria.Query != "" {
		text := url.Values{}
		text.Set("q", criteria.Query)
		if criteria.Year > 0 {
			text.Set("q", fmt.Sprintf("%s %d", criteria.Query, criteria.Year))
		}
		chain.AddTier()
		g.addPaged(chain, "movie", text, criteria)
	}
}

func (g *Generator) tvRequests(chain *indexer.RequestChain, criteria *indexer.SearchCriteria) {
	hasSeriesID := false
	idParams := url.Values{}
	if criteria.TvdbID > 0 && g.caps.HasSearchParam(indexer.SearchTypeTV, indexer.ParamTvdbID) {
		idParams.Set("tvdbid", strconv.Itoa(criteria.TvdbID))
		hasSeriesID = true
	}
	if criteria.ImdbID != "" && g.caps.HasSearchParam(indexer.SearchTypeTV, indexer.ParamImdbID) {
		idParams.Set("imdbid", strings.TrimPrefix(criteria.ImdbID, "tt"))
		hasSeriesID = true
	}
	if criteria.TvMazeID > 0 && g.caps.HasSearchParam(indexer.SearchTypeTV, "tvmazeid") {
		idParams.Set("tvmazeid", strconv.Itoa(criteria.TvMazeID))
		hasSeriesID = true
	}

	// A season or episode number is meaningless without something that
	// identifies the series.
	if criteria.Season > 0 && !hasSeriesID && criteria.Query == "" {
		return
	}

	episode := url.Values{}
	if criteria.Season > 0 && g.caps.HasSearchParam(indexer.SearchTypeTV, indexer.ParamSeason) {
		episode.Set("season", strconv.Itoa(criteria.Season))
		if criteria.Episode > 0 && g.caps.HasSearchParam(indexer.SearchTypeTV, indexer.ParamEp) {
			episode.Set("ep", strconv.Itoa(criteria.Episode))
		}
	}

	if hasSeriesID {
		params := cloneValues(idParams)
		mergeValues(params, episode)
		chain.AddTier()
		g.addPaged(chain, "tvsearch", params, criteria)
	}
	if criteria.Query != "" {
		params := url.Values{}
		params.Set("q", criteria.Query)
		mergeValues(params, episode)
		chain.AddTier()
		g.addPaged(chain, "tvsearch", params, criteria)
	}
}

func (g *Generator) musicRequests(chain *indexer.RequestChain, criteria *indexer.SearchCriteria) {
	fielded := url.Values{}
	if criteria.Artist != "" && g.caps.HasSearchParam(indexer.SearchTypeMusic, indexer.ParamArtist) {
		fielded.Set("artist", criteria.Artist)
	}
	if criteria.Album != "" && g.caps.HasSearchParam(indexer.SearchTypeMusic, indexer.ParamAlbum) {
		fielded.Set("album", criteria.Album)
	}
	if len(fielded) > 0 {
		chain.AddTier()
		g.addPaged(chain, "music", fielded, criteria)
	}

	text := strings.TrimSpace(criteria.Artist + " " + criteria.Album)
	if text == "" {
		text = criteria.Query
	}
	if text != "" {
		params := url.Values{}
		params.Set("q", text)
		chain.AddTier()
		g.addPaged(chain, "music", params, criteria)
	}
}

func (g *Generator) bookRequests(chain *indexer.RequestChain, criteria *indexer.SearchCriteria) {
	fielded := url.Values{}
	if criteria.Author != "" && g.caps.HasSearchParam(indexer.SearchTypeBook, indexer.ParamAuthor) {
		fielded.Set("author", criteria.Author)
	}
	if criteria.Title != "" && g.caps.HasSearchParam(indexer.SearchTypeBook, indexer.ParamTitle) {
		fielded.Set("title", criteria.Title)
	}
	if len(fielded) > 0 {
		chain.AddTier()
		g.addPaged(chain, "book", fielded, criteria)
	}

	text := strings.TrimSpace(criteria.Author + " " + criteria.Title)
	if text == "" {
		text = criteria.Query
	}
	if text != "" {
		params := url.Values{}
		params.Set("q", text)
		chain.AddTier()
		g.addPaged(chain, "book", params, criteria)
	}
}

func (g *Generator) basicRequests(chain *indexer.RequestChain, criteria *indexer.SearchCriteria) {
	params := url.Values{}
	if criteria.Query != "" {
		params.Set("q", criteria.Query)
	}
	chain.AddTier()
	g.addPaged(chain, "search", params, criteria)
}

// addPaged emits the pagination siblings covering the requested window.
// Providers without pagination support get a single request.
func (g *Generator) addPaged(chain *indexer.RequestChain, mode string, params url.Values, criteria *indexer.SearchCriteria) {
	pageSize := g.pageSize()
	wanted := criteria.Limit
	if wanted <= 0 || !g.def.SupportsPagination {
		wanted = pageSize
	}

	offset := criteria.Offset
	remaining := wanted
	for page := 0; remaining > 0 && page < maxPages; page++ {
		limit := remaining
		if limit > pageSize {
			limit = pageSize
		}
		req := indexer.NewRequest(g.buildURL(mode, params, criteria.Categories, limit, offset))
		req.Paged = page > 0
		chain.Add(req)

		offset += limit
		remaining -= limit
		if !g.def.SupportsPagination {
			break
		}
	}
}

func (g *Generator) buildURL(mode string, params url.Values, cats []int, limit, offset int) string {
	q := cloneValues(params)
	q.Set("t", mode)
	q.Set("extended", "1")
	if g.settings.APIKey != "" {
		q.Set("apikey", g.settings.APIKey)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if v := g.categoryParam(cats); v != "" {
		q.Set("cat", v)
	}
	return g.settings.APIURL() + "?" + q.Encode()
}

// categoryParam maps the requested standard categories to the provider's
// native IDs. A missing or empty mapping table means the standard IDs pass
// through as-is rather than dropping the filter.
func (g *Generator) categoryParam(cats []int) string {
	if len(cats) == 0 {
		return ""
	}
	if g.caps.Categories == nil || g.caps.Categories.Len() == 0 {
		ids := make([]string, 0, len(cats))
		for _, id := range cats {
			ids = append(ids, strconv.Itoa(id))
		}
		return strings.Join(ids, ",")
	}
	return strings.Join(g.caps.Categories.MapStandardToNative(cats), ",")
}

func (g *Generator) pageSize() int {
	if g.def.PageSize > 0 {
		return g.def.PageSize
	}
	if g.caps.LimitsDefault > 0 {
		size := g.caps.LimitsDefault
		if g.caps.LimitsMax > 0 && size > g.caps.LimitsMax {
			size = g.caps.LimitsMax
		}
		return size
	}
	if g.caps.LimitsMax > 0 && defaultPageSize > g.caps.LimitsMax {
		return g.caps.LimitsMax
	}
	return defaultPageSize
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	mergeValues(out, v)
	return out
}

func mergeValues(dst, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Set(k, v)
		}
	}
}
