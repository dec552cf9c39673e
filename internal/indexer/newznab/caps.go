package newznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

type capsXML struct {
	Limits struct {
		Max     string `xml:"max,attr"`
		Default string `xml:"default,attr"`
	} `xml:"limits"`
	Searching struct {
		Search      capsSearchXML `xml:"search"`
		TVSearch    capsSearchXML `xml:"tv-search"`
		MovieSearch capsSearchXML `xml:"movie-search"`
		MusicSearch capsSearchXML `xml:"music-search"`
		AudioSearch capsSearchXML `xml:"audio-search"`
		BookSearch  capsSearchXML `xml:"book-search"`
	} `xml:"searching"`
	Categories struct {
		Category []capsCategoryXML `xml:"category"`
	} `xml:"categories"`
}

type capsSearchXML struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCategoryXML struct {
	ID     string            `xml:"id,attr"`
	Name   string            `xml:"name,attr"`
	Subcat []capsCategoryXML `xml:"subcat"`
}

func (s capsSearchXML) params() []string {
	if !strings.EqualFold(s.Available, "yes") {
		return nil
	}
	raw := strings.Split(s.SupportedParams, ",")
	params := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	if len(params) == 0 {
		params = []string{indexer.ParamQ}
	}
	return params
}

// CapsFetcher binds a provider's transport and settings so capability
// discovery can run behind the capabilities cache.
type CapsFetcher struct {
	Transport indexer.Transport
	Def       indexer.Definition
	Settings  Settings
}

// FetchCapabilities implements capabilities.Fetcher.
func (f CapsFetcher) FetchCapabilities(ctx context.Context) (*indexer.Capabilities, error) {
	return FetchCapabilities(ctx, f.Transport, &f.Def, f.Settings)
}

// FetchCapabilities queries the provider's caps endpoint and converts the
// result to the engine's capability model. The category tree is registered
// as a bidirectional mapping; Newznab native IDs that match a standard ID
// map onto it directly, anything else becomes a custom entry.
func FetchCapabilities(ctx context.Context, transport indexer.Transport, def *indexer.Definition, settings Settings) (*indexer.Capabilities, error) {
	req := indexer.NewRequest(settings.APIURL() + "?t=caps" + apiKeyParam(settings))
	resp, err := transport.Execute(ctx, req)
	if err != nil {
		return nil, indexer.NewTransportError(def, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, indexer.NewTransportError(def, fmt.Errorf("caps request returned status %d", resp.StatusCode))
	}

	var caps capsXML
	if err := xml.Unmarshal(resp.Body, &caps); err != nil {
		return nil, indexer.NewParseError(def, "invalid caps response", err)
	}

	out := &indexer.Capabilities{
		SearchParams:      caps.Searching.Search.params(),
		TVSearchParams:    caps.Searching.TVSearch.params(),
		MovieSearchParams: caps.Searching.MovieSearch.params(),
		MusicSearchParams: caps.Searching.MusicSearch.params(),
		BookSearchParams:  caps.Searching.BookSearch.params(),
		Categories:        categories.NewMappings(),
	}
	// Some older backends advertise music under audio-search.
	if len(out.MusicSearchParams) == 0 {
		out.MusicSearchParams = caps.Searching.AudioSearch.params()
	}
	if v, err := strconv.Atoi(caps.Limits.Max); err == nil && v > 0 {
		out.LimitsMax = v
	}
	if v, err := strconv.Atoi(caps.Limits.Default); err == nil && v > 0 {
		out.LimitsDefault = v
	}

	for _, cat := range caps.Categories.Category {
		registerCategory(out.Categories, cat, "")
		for _, sub := range cat.Subcat {
			registerCategory(out.Categories, sub, cat.Name)
		}
	}
	return out, nil
}

func registerCategory(m *categories.Mappings, cat capsCategoryXML, parentName string) {
	id, err := strconv.Atoi(cat.ID)
	if err != nil {
		return
	}
	name := cat.Name
	if parentName != "" {
		name = parentName + "/" + name
	}
	m.AddCategoryMapping(cat.ID, id, name)
}

func apiKeyParam(settings Settings) string {
	if settings.APIKey == "" {
		return ""
	}
	return "&apikey=" + settings.APIKey
}
