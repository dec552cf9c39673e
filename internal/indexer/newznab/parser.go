package newznab

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

type rssXML struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []itemXML `xml:"item"`
	} `xml:"channel"`
}

type errorXML struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

type itemXML struct {
	Title   string `xml:"title"`
	GUID    string `xml:"guid"`
	Link    string `xml:"link"`
	Comment string `xml:"comments"`
	PubDate string `xml:"pubDate"`
	Size    int64  `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	// Both the newznab and torznab attr namespaces land here.
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// Parser converts Newznab RSS responses into normalized releases. Rows that
// fail to yield a usable release are skipped individually; a response that
// is not parseable at all surfaces a typed parse error.
type Parser struct {
	def  *indexer.Definition
	caps *indexer.Capabilities
	loc  *time.Location
}

// NewParser creates a response parser for one configured provider. Feed
// dates without zone information are read in the provider's configured
// offset.
func NewParser(def *indexer.Definition, settings Settings, caps *indexer.Capabilities) *Parser {
	return &Parser{def: def, caps: caps, loc: indexer.FixedLocation(settings.TimezoneOffset)}
}

// Parse extracts releases from a raw API response.
func (p *Parser) Parse(resp *indexer.Response) ([]indexer.ReleaseInfo, error) {
	if ct := resp.ContentType(); ct != "" && !strings.Contains(ct, "xml") {
		return nil, indexer.NewParseError(p.def,
			fmt.Sprintf("expected XML response, got %s", ct), nil)
	}

	// Newznab APIs report failures as an <error> document with a 200.
	var apiErr errorXML
	if err := xml.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Code != "" {
		if code, _ := strconv.Atoi(apiErr.Code); code >= 100 && code <= 199 {
			return nil, indexer.NewAuthError(p.def,
				fmt.Errorf("api error %s: %s", apiErr.Code, apiErr.Description))
		}
		return nil, indexer.NewParseError(p.def,
			fmt.Sprintf("api error %s: %s", apiErr.Code, apiErr.Description), nil)
	}

	var feed rssXML
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, indexer.NewParseError(p.def, "invalid feed", err)
	}

	releases := make([]indexer.ReleaseInfo, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		release, ok := p.parseItem(item)
		if !ok {
			continue
		}
		releases = append(releases, release)
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].PublishDate.After(releases[j].PublishDate)
	})
	return releases, nil
}

func (p *Parser) parseItem(item itemXML) (indexer.ReleaseInfo, bool) {
	if item.Title == "" {
		return indexer.ReleaseInfo{}, false
	}

	release := indexer.ReleaseInfo{
		GUID:        item.GUID,
		Title:       item.Title,
		InfoURL:     item.Comment,
		DownloadURL: item.Link,
		Size:        item.Size,
		Protocol:    p.def.Protocol,
	}
	if release.DownloadURL == "" {
		release.DownloadURL = item.Enclosure.URL
	}
	if release.Size == 0 {
		release.Size = item.Enclosure.Length
	}
	if date, ok := p.parsePubDate(item.PubDate); ok {
		release.PublishDate = date.UTC()
	}

	var nativeCats []string
	for _, attr := range item.Attrs {
		value := strings.TrimSpace(attr.Value)
		switch strings.ToLower(attr.Name) {
		case "size":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v > 0 {
				release.Size = v
			}
		case "guid":
			if value != "" {
				release.GUID = value
			}
		case "category":
			if value != "" {
				nativeCats = append(nativeCats, value)
			}
		case "imdbid", "imdb":
			release.ImdbID, _ = strconv.Atoi(strings.TrimPrefix(value, "tt"))
		case "tmdbid":
			release.TmdbID, _ = strconv.Atoi(value)
		case "tvdbid":
			release.TvdbID, _ = strconv.Atoi(value)
		case "grabs":
			release.Grabs, _ = strconv.Atoi(value)
		case "poster":
			release.Poster = value
		case "group":
			if value != "not available" {
				release.Group = value
			}
		case "seeders":
			release.Seeders, _ = strconv.Atoi(value)
		case "peers":
			release.Peers, _ = strconv.Atoi(value)
		case "infohash":
			release.InfoHash = value
		case "magneturl":
			release.MagnetURL = value
		case "minimumratio":
			release.MinimumRatio, _ = strconv.ParseFloat(value, 64)
		case "minimumseedtime":
			release.MinimumSeedTime, _ = strconv.ParseInt(value, 10, 64)
		case "downloadvolumefactor":
			release.DownloadVolumeFactor, _ = strconv.ParseFloat(value, 64)
		case "uploadvolumefactor":
			release.UploadVolumeFactor, _ = strconv.ParseFloat(value, 64)
		}
	}

	if release.Peers >= release.Seeders && release.Peers > 0 {
		release.Leechers = release.Peers - release.Seeders
	}
	release.Categories = p.mapCategories(nativeCats)
	return release, true
}

func (p *Parser) mapCategories(native []string) []int {
	if len(native) == 0 {
		return []int{categories.Fallback().ID}
	}
	if p.caps != nil && p.caps.Categories != nil && p.caps.Categories.Len() > 0 {
		if mapped := p.caps.Categories.MapNativeToStandard(native); len(mapped) > 0 {
			ids := make([]int, len(mapped))
			for i, cat := range mapped {
				ids[i] = cat.ID
			}
			return ids
		}
	}
	// No mapping table: keep numeric IDs that look like standard categories.
	out := make([]int, 0, len(native))
	for _, id := range native {
		if v, err := strconv.Atoi(id); err == nil && v < categories.SyntheticCutoff {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []int{categories.Fallback().ID}
	}
	return out
}

// parsePubDate reads a feed date. Layouts that carry their own zone keep
// it; zone-less layouts are interpreted in the provider's offset.
func (p *Parser) parsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
