package htmlscrape

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

// Parser extracts releases from a site's search results markup using the
// configured selector set. Rows missing a title or download link are
// skipped; a page where the rows selector matches nothing at all is treated
// as an empty result, not an error, since that is what a no-hits search
// page looks like.
type Parser struct {
	def      *indexer.Definition
	settings Settings
	loc      *time.Location
}

// NewParser creates a response parser for one scraped site. Listing dates
// without zone information are read in the site's configured offset.
func NewParser(def *indexer.Definition, settings Settings) *Parser {
	return &Parser{
		def:      def,
		settings: settings,
		loc:      indexer.FixedLocation(settings.TimezoneOffset),
	}
}

// Parse extracts releases from a search results page.
func (p *Parser) Parse(resp *indexer.Response) ([]indexer.ReleaseInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, indexer.NewParseError(p.def, "unparseable page", err)
	}

	sel := p.settings.Selectors
	releases := make([]indexer.ReleaseInfo, 0)
	doc.Find(sel.Rows).Each(func(_ int, row *goquery.Selection) {
		release, ok := p.parseRow(row)
		if ok {
			releases = append(releases, release)
		}
	})
	return releases, nil
}

func (p *Parser) parseRow(row *goquery.Selection) (indexer.ReleaseInfo, bool) {
	sel := p.settings.Selectors

	title := extract(row, sel.Title, sel.TitleAttr)
	download := extract(row, sel.Download, sel.DownloadAttr)
	if title == "" || download == "" {
		return indexer.ReleaseInfo{}, false
	}

	release := indexer.ReleaseInfo{
		Title:       title,
		DownloadURL: p.absoluteURL(download),
		Protocol:    indexer.ProtocolTorrent,
		Categories:  []int{categories.Fallback().ID},
	}
	if strings.HasPrefix(download, "magnet:") {
		release.MagnetURL = download
		release.DownloadURL = ""
	}
	if details := extract(row, sel.Details, sel.DetailsAttr); details != "" {
		release.InfoURL = p.absoluteURL(details)
	}
	release.GUID = release.InfoURL
	if release.GUID == "" {
		release.GUID = release.DownloadURL
	}
	if release.GUID == "" {
		release.GUID = release.MagnetURL
	}

	if raw := extract(row, sel.Size, ""); raw != "" {
		release.Size = ParseSize(raw)
	}
	if raw := extract(row, sel.Seeders, ""); raw != "" {
		release.Seeders = atoiLoose(raw)
	}
	if raw := extract(row, sel.Leechers, ""); raw != "" {
		release.Leechers = atoiLoose(raw)
	}
	if raw := extract(row, sel.Category, sel.CategoryAttr); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			if _, known := categories.Lookup(id); known {
				release.Categories = []int{id}
			}
		}
	}
	if raw := extract(row, sel.Date, ""); raw != "" {
		if t, ok := p.parseDate(raw); ok {
			release.PublishDate = t.UTC()
		}
	}
	return release, true
}

func (p *Parser) parseDate(raw string) (time.Time, bool) {
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	if p.settings.Selectors.DateFormat != "" {
		layouts = append([]string{p.settings.Selectors.DateFormat}, layouts...)
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) absoluteURL(link string) string {
	if link == "" || strings.Contains(link, "://") || strings.HasPrefix(link, "magnet:") {
		return link
	}
	base := strings.TrimSuffix(p.def.BaseURL, "/")
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return base + link
}

func extract(row *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	found := row.Find(selector).First()
	if found.Length() == 0 {
		return ""
	}
	if attr != "" {
		val, _ := found.Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(found.Text())
}

var sizePattern = regexp.MustCompile(`([\d.]+)\s*([KMGTPE]?I?B?)`)

// ParseSize converts a human-readable size ("1.4 GB", "700 MiB") to bytes.
// Unrecognized input yields zero.
func ParseSize(value string) int64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	matches := sizePattern.FindStringSubmatch(strings.ToUpper(value))
	if len(matches) < 2 {
		return 0
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}

	var multiplier float64 = 1
	if len(matches) >= 3 {
		switch {
		case strings.HasPrefix(matches[2], "K"):
			multiplier = 1 << 10
		case strings.HasPrefix(matches[2], "M"):
			multiplier = 1 << 20
		case strings.HasPrefix(matches[2], "G"):
			multiplier = 1 << 30
		case strings.HasPrefix(matches[2], "T"):
			multiplier = 1 << 40
		case strings.HasPrefix(matches[2], "P"):
			multiplier = 1 << 50
		}
	}
	return int64(num * multiplier)
}

func atoiLoose(raw string) int {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, _ := strconv.Atoi(raw)
	return v
}
