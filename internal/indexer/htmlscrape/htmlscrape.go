// Package htmlscrape implements a selector-driven HTML scraping protocol
// for torrent sites without a machine API. Search pages are fetched as
// regular site pages and releases extracted via CSS selectors.
package htmlscrape

import (
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

// Settings configures one scraped site: paths, credentials and the selector
// set that locates release data in its markup.
type Settings struct {
	SearchPath string `json:"searchPath" yaml:"searchPath"`
	QueryParam string `json:"queryParam,omitempty" yaml:"queryParam,omitempty"`
	CatParam   string `json:"catParam,omitempty" yaml:"catParam,omitempty"`

	LoginPath     string `json:"loginPath,omitempty" yaml:"loginPath,omitempty"`
	Username      string `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string `json:"password,omitempty" yaml:"password,omitempty"`
	UsernameField string `json:"usernameField,omitempty" yaml:"usernameField,omitempty"`
	PasswordField string `json:"passwordField,omitempty" yaml:"passwordField,omitempty"`

	// LoginFailureText marks a failed login when found in the response body.
	LoginFailureText string `json:"loginFailureText,omitempty" yaml:"loginFailureText,omitempty"`

	// TimezoneOffset is the site's documented UTC offset ("+02:00"),
	// applied to listing dates that carry no zone information.
	TimezoneOffset string `json:"timezoneOffset,omitempty" yaml:"timezoneOffset,omitempty"`

	Selectors Selectors `json:"selectors" yaml:"selectors"`
}

// Selectors is the CSS selector set for one site's search results markup.
// Attr variants read an attribute instead of element text.
type Selectors struct {
	Rows string `json:"rows" yaml:"rows"`

	Title        string `json:"title" yaml:"title"`
	TitleAttr    string `json:"titleAttr,omitempty" yaml:"titleAttr,omitempty"`
	Download     string `json:"download" yaml:"download"`
	DownloadAttr string `json:"downloadAttr,omitempty" yaml:"downloadAttr,omitempty"`
	Details      string `json:"details,omitempty" yaml:"details,omitempty"`
	DetailsAttr  string `json:"detailsAttr,omitempty" yaml:"detailsAttr,omitempty"`
	Size         string `json:"size,omitempty" yaml:"size,omitempty"`
	Seeders      string `json:"seeders,omitempty" yaml:"seeders,omitempty"`
	Leechers     string `json:"leechers,omitempty" yaml:"leechers,omitempty"`
	Category     string `json:"category,omitempty" yaml:"category,omitempty"`
	CategoryAttr string `json:"categoryAttr,omitempty" yaml:"categoryAttr,omitempty"`
	Date         string `json:"date,omitempty" yaml:"date,omitempty"`
	DateFormat   string `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`

	// TokenExhausted marks a download response that is a "no tokens left"
	// page rather than a torrent file; AltDownload locates the fallback link
	// on that page.
	TokenExhausted string `json:"tokenExhausted,omitempty" yaml:"tokenExhausted,omitempty"`
	AltDownload    string `json:"altDownload,omitempty" yaml:"altDownload,omitempty"`
}

// Validate checks the minimum selector surface.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.SearchPath) == "" {
		return errMissing("searchPath")
	}
	if strings.TrimSpace(s.Selectors.Rows) == "" {
		return errMissing("selectors.rows")
	}
	if strings.TrimSpace(s.Selectors.Title) == "" {
		return errMissing("selectors.title")
	}
	return nil
}

// NewProvider wires a scraped torrent site into the engine. Credentialed
// sites get a form login authenticator; every download is validated as a
// well-formed torrent, with one alternate-link retry for sites that serve
// token-exhaustion pages with a success status.
func NewProvider(def indexer.Definition, settings Settings) *indexer.Provider {
	p := &indexer.Provider{
		Definition:       def,
		Capabilities:     defaultCapabilities(),
		Generator:        NewGenerator(&def, settings),
		Parser:           NewParser(&def, settings),
		ValidateDownload: indexer.ValidateTorrent,
	}
	if settings.Username != "" {
		p.Auth = NewFormAuthenticator(&def, settings)
	}
	if settings.Selectors.TokenExhausted != "" {
		p.RetryDownload = retryFunc(settings)
	}
	return p
}

// defaultCapabilities declares the text-only surface a scraped site offers:
// plain queries across every variant, no external ID parameters.
func defaultCapabilities() *indexer.Capabilities {
	q := []string{indexer.ParamQ}
	return &indexer.Capabilities{
		SearchParams:      q,
		TVSearchParams:    q,
		MovieSearchParams: q,
		MusicSearchParams: q,
		BookSearchParams:  q,
		SupportsRawSearch: true,
	}
}

type settingsError string

func (e settingsError) Error() string { return string(e) + " is required" }

func errMissing(field string) error { return settingsError(field) }
