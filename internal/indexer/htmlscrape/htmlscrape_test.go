package htmlscrape

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

const resultsPage = `<html><body>
<table class="results">
  <tr class="release">
    <td class="name"><a class="details" href="/torrent/101">Cool.Release.2160p</a></td>
    <td><a class="dl" href="/download/101.torrent">get</a></td>
    <td class="size">1.4 GB</td>
    <td class="seed">120</td>
    <td class="leech">8</td>
    <td class="added">2024-03-01 18:45:00</td>
  </tr>
  <tr class="release">
    <td class="name"><a class="details" href="/torrent/102">Other.Release.720p</a></td>
    <td><a class="dl" href="magnet:?xt=urn:btih:deadbeef">magnet</a></td>
    <td class="size">700 MiB</td>
    <td class="seed">3</td>
    <td class="leech">1</td>
  </tr>
  <tr class="release">
    <td class="name"><a class="details" href="/torrent/103"></a></td>
    <td><a class="dl" href="/download/103.torrent">get</a></td>
  </tr>
</table>
</body></html>`

func testSettings() Settings {
	return Settings{
		SearchPath: "/browse.php",
		QueryParam: "search",
		CatParam:   "cat",
		Selectors: Selectors{
			Rows:         "tr.release",
			Title:        "a.details",
			Download:     "a.dl",
			DownloadAttr: "href",
			Details:      "a.details",
			DetailsAttr:  "href",
			Size:         "td.size",
			Seeders:      "td.seed",
			Leechers:     "td.leech",
			Date:         "td.added",
			DateFormat:   "2006-01-02 15:04:05",
		},
	}
}

func testDef() indexer.Definition {
	return indexer.Definition{
		ID:       7,
		Name:     "scrapetest",
		Protocol: indexer.ProtocolTorrent,
		BaseURL:  "https://tracker.example.com",
	}
}

func TestParse_ExtractsRows(t *testing.T) {
	def := testDef()
	p := NewParser(&def, testSettings())

	releases, err := p.Parse(&indexer.Response{StatusCode: 200, Body: []byte(resultsPage)})
	require.NoError(t, err)
	require.Len(t, releases, 2, "the row without a title should be dropped")

	first := releases[0]
	assert.Equal(t, "Cool.Release.2160p", first.Title)
	assert.Equal(t, "https://tracker.example.com/download/101.torrent", first.DownloadURL)
	assert.Equal(t, "https://tracker.example.com/torrent/101", first.InfoURL)
	assert.Equal(t, first.InfoURL, first.GUID)
	assert.Equal(t, int64(1503238553), first.Size) // 1.4 * 1024^3, truncated
	assert.Equal(t, 120, first.Seeders)
	assert.Equal(t, 8, first.Leechers)
	assert.False(t, first.PublishDate.IsZero())
	assert.Equal(t, indexer.ProtocolTorrent, first.Protocol)

	second := releases[1]
	assert.Equal(t, "magnet:?xt=urn:btih:deadbeef", second.MagnetURL)
	assert.Empty(t, second.DownloadURL)
	assert.Equal(t, int64(734003200), second.Size)
}

func TestParse_ZonelessDateUsesConfiguredOffset(t *testing.T) {
	def := testDef()
	settings := testSettings()
	settings.TimezoneOffset = "+02:00"
	p := NewParser(&def, settings)

	releases, err := p.Parse(&indexer.Response{StatusCode: 200, Body: []byte(resultsPage)})
	require.NoError(t, err)
	require.Len(t, releases, 2)

	// The listing shows 18:45 site-local time, two hours ahead of UTC.
	want := time.Date(2024, 3, 1, 16, 45, 0, 0, time.UTC)
	assert.True(t, releases[0].PublishDate.Equal(want),
		"got %s, want %s", releases[0].PublishDate, want)
}

func TestParse_NoRowsIsEmptyNotError(t *testing.T) {
	def := testDef()
	p := NewParser(&def, testSettings())

	releases, err := p.Parse(&indexer.Response{
		StatusCode: 200,
		Body:       []byte(`<html><body><p>No torrents found.</p></body></html>`),
	})
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.4 GB", 1503238553},
		{"700 MiB", 734003200},
		{"512 KB", 524288},
		{"2 TB", 2199023255552},
		{"1,024 MB", 1073741824},
		{"123456", 123456},
		{"n/a", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSize(tt.in))
		})
	}
}

func TestBuildRequests_SearchURL(t *testing.T) {
	def := testDef()
	g := NewGenerator(&def, testSettings())

	chain, err := g.BuildRequests(&indexer.SearchCriteria{
		Type:       indexer.SearchTypeBasic,
		Query:      "cool release",
		Categories: []int{categories.Movies, categories.MoviesHD},
	})
	require.NoError(t, err)
	require.Equal(t, 1, chain.Len())

	url := chain.Tiers()[0][0].URL
	assert.Contains(t, url, "https://tracker.example.com/browse.php?")
	assert.Contains(t, url, "search=cool+release")
	assert.Contains(t, url, "cat=2000%2C2040")
}

func TestBuildRequests_MovieIDOnlyIsEmpty(t *testing.T) {
	def := testDef()
	g := NewGenerator(&def, testSettings())

	chain, err := g.BuildRequests(&indexer.SearchCriteria{
		Type:   indexer.SearchTypeMovie,
		ImdbID: "tt0133093",
	})
	require.NoError(t, err)
	assert.True(t, chain.Empty(), "sites without ID search cannot serve ID-only criteria")
}

func TestBuildRequests_MusicCollapsesToText(t *testing.T) {
	def := testDef()
	g := NewGenerator(&def, testSettings())

	chain, err := g.BuildRequests(&indexer.SearchCriteria{
		Type:   indexer.SearchTypeMusic,
		Artist: "Autechre",
		Album:  "Tri Repetae",
	})
	require.NoError(t, err)
	require.Equal(t, 1, chain.Len())
	assert.Contains(t, chain.Tiers()[0][0].URL, "search=Autechre+Tri+Repetae")
}

type stubTransport struct {
	resp *indexer.Response
	err  error
	got  *indexer.Request
}

func (s *stubTransport) Execute(_ context.Context, req *indexer.Request) (*indexer.Response, error) {
	s.got = req
	return s.resp, s.err
}

func TestLogin_CapturesSessionCookies(t *testing.T) {
	def := testDef()
	settings := testSettings()
	settings.Username = "user"
	settings.Password = "pass"
	settings.LoginPath = "/takelogin.php"
	settings.LoginFailureText = "Login failed"

	transport := &stubTransport{resp: &indexer.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Cookies:    map[string]string{"session": "abc123"},
	}}

	auth := NewFormAuthenticator(&def, settings)
	cookies, expiry, err := auth.Login(context.Background(), transport)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "abc123"}, cookies)
	assert.False(t, expiry.IsZero())

	require.NotNil(t, transport.got)
	assert.Equal(t, http.MethodPost, transport.got.Method)
	assert.Equal(t, "https://tracker.example.com/takelogin.php", transport.got.URL)
	assert.Contains(t, transport.got.Body, "username=user")
	assert.Contains(t, transport.got.Body, "password=pass")
}

func TestLogin_RejectedCredentials(t *testing.T) {
	def := testDef()
	settings := testSettings()
	settings.Username = "user"
	settings.Password = "wrong"
	settings.LoginFailureText = "Login failed"

	transport := &stubTransport{resp: &indexer.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       []byte(`<html>Login failed: bad password</html>`),
		Cookies:    map[string]string{"session": "junk"},
	}}

	auth := NewFormAuthenticator(&def, settings)
	_, _, err := auth.Login(context.Background(), transport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login rejected")
}

func TestRetryDownload_TokenExhaustionPage(t *testing.T) {
	settings := testSettings()
	settings.Selectors.TokenExhausted = "div.no-tokens"
	settings.Selectors.AltDownload = "a.freeleech"

	retry := retryFunc(settings)
	h := http.Header{}
	h.Set("Content-Type", "text/html")

	page := `<html><div class="no-tokens">Out of download tokens</div>
<a class="freeleech" href="/download/101.torrent?free=1">use freeleech</a></html>`
	alt, ok := retry("/download/101.torrent", &indexer.Response{Header: h, Body: []byte(page)})
	require.True(t, ok)
	assert.Equal(t, "/download/101.torrent?free=1", alt)

	// A real torrent payload never triggers the retry.
	bin := http.Header{}
	bin.Set("Content-Type", "application/x-bittorrent")
	_, ok = retry("/download/101.torrent", &indexer.Response{Header: bin, Body: []byte("d8:announce...")})
	assert.False(t, ok)
}
