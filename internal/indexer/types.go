// Package indexer contains the core contracts and execution pipeline for
// search providers: request generation, transport, response parsing,
// health tracking and result normalization.
package indexer

import (
	"time"
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// Privacy represents indexer privacy level.
type Privacy string

const (
	PrivacyPublic      Privacy = "public"
	PrivacySemiPrivate Privacy = "semi-private"
	PrivacyPrivate     Privacy = "private"
)

// SearchType identifies the search criteria variant.
type SearchType string

const (
	SearchTypeBasic SearchType = "search"
	SearchTypeMovie SearchType = "movie"
	SearchTypeTV    SearchType = "tvsearch"
	SearchTypeMusic SearchType = "music"
	SearchTypeBook  SearchType = "book"
)

// SearchCriteria defines search parameters. The Type field selects the
// variant; variant-specific fields are ignored for other types.
type SearchCriteria struct {
	Type       SearchType `json:"type"`
	Query      string     `json:"query,omitempty"`
	Categories []int      `json:"categories,omitempty"`

	// External IDs
	ImdbID   string `json:"imdbId,omitempty"`
	TmdbID   int    `json:"tmdbId,omitempty"`
	TvdbID   int    `json:"tvdbId,omitempty"`
	TvMazeID int    `json:"tvMazeId,omitempty"`

	// Movie-specific
	Year int `json:"year,omitempty"`

	// TV-specific
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`

	// Music-specific
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`

	// Book-specific
	Author string `json:"author,omitempty"`
	Title  string `json:"title,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// IsRSS reports whether the criteria describes an empty feed browse rather
// than an interactive query.
func (c *SearchCriteria) IsRSS() bool {
	return c.Query == "" && c.ImdbID == "" && c.TmdbID == 0 && c.TvdbID == 0 &&
		c.TvMazeID == 0 && c.Artist == "" && c.Author == ""
}

// ReleaseInfo represents one normalized release returned by a provider.
// Protocol-specific fields (seeders, grabs, ...) are populated according to
// the provider's protocol and left zero otherwise.
type ReleaseInfo struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	InfoURL     string    `json:"infoUrl,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	MagnetURL   string    `json:"magnetUrl,omitempty"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publishDate"`
	Categories  []int     `json:"categories"`

	IndexerID   int64    `json:"indexerId"`
	IndexerName string   `json:"indexer"`
	Protocol    Protocol `json:"protocol"`

	// External IDs
	ImdbID int `json:"imdbId,omitempty"`
	TmdbID int `json:"tmdbId,omitempty"`
	TvdbID int `json:"tvdbId,omitempty"`

	// Torrent-specific
	Seeders              int     `json:"seeders,omitempty"`
	Leechers             int     `json:"leechers,omitempty"`
	Peers                int     `json:"peers,omitempty"`
	InfoHash             string  `json:"infoHash,omitempty"`
	MinimumRatio         float64 `json:"minimumRatio,omitempty"`
	MinimumSeedTime      int64   `json:"minimumSeedTime,omitempty"` // seconds
	DownloadVolumeFactor float64 `json:"downloadVolumeFactor,omitempty"`
	UploadVolumeFactor   float64 `json:"uploadVolumeFactor,omitempty"`

	// Usenet-specific
	Grabs  int    `json:"grabs,omitempty"`
	Poster string `json:"poster,omitempty"`
	Group  string `json:"group,omitempty"`
}

// Definition is the identity and common configuration of one configured
// provider. Protocol-specific settings live with the protocol packages.
type Definition struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Privacy  Privacy  `json:"privacy"`
	BaseURL  string   `json:"baseUrl"`
	Priority int      `json:"priority"`
	Enabled  bool     `json:"enabled"`

	// PageSize is the number of results one page request returns; zero
	// means the provider default.
	PageSize           int  `json:"pageSize,omitempty"`
	SupportsPagination bool `json:"supportsPagination,omitempty"`

	// MinQueryLength aborts request generation for shorter text queries.
	MinQueryLength int `json:"minQueryLength,omitempty"`
}

// SearchMode parameter names, as declared by a capability descriptor.
const (
	ParamQ      = "q"
	ParamImdbID = "imdbid"
	ParamTmdbID = "tmdbid"
	ParamTvdbID = "tvdbid"
	ParamSeason = "season"
	ParamEp     = "ep"
	ParamArtist = "artist"
	ParamAlbum  = "album"
	ParamAuthor = "author"
	ParamTitle  = "title"
)
