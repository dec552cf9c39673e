package htmlscrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

// sessionTTL bounds how long captured login cookies are reused before the
// next login round trip. Sites rarely advertise their session lifetime, so
// a conservative fixed window stands in.
const sessionTTL = 12 * time.Hour

// FormAuthenticator logs into a site by posting the credential form and
// capturing the session cookies from the response.
type FormAuthenticator struct {
	def      *indexer.Definition
	settings Settings
}

// NewFormAuthenticator creates an authenticator for one credentialed site.
func NewFormAuthenticator(def *indexer.Definition, settings Settings) *FormAuthenticator {
	return &FormAuthenticator{def: def, settings: settings}
}

// Login posts the credential form and returns the captured session cookies.
func (a *FormAuthenticator) Login(ctx context.Context, transport indexer.Transport) (map[string]string, time.Time, error) {
	form := url.Values{}
	form.Set(a.usernameField(), a.settings.Username)
	form.Set(a.passwordField(), a.settings.Password)

	req := &indexer.Request{
		Method: http.MethodPost,
		URL:    strings.TrimSuffix(a.def.BaseURL, "/") + a.loginPath(),
		Header: http.Header{},
		Body:   form.Encode(),
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := transport.Execute(ctx, req)
	if err != nil {
		return nil, time.Time{}, err
	}
	if resp.StatusCode >= 400 {
		return nil, time.Time{}, fmt.Errorf("login returned status %d", resp.StatusCode)
	}
	if marker := a.settings.LoginFailureText; marker != "" &&
		strings.Contains(string(resp.Body), marker) {
		return nil, time.Time{}, fmt.Errorf("login rejected: found %q in response", marker)
	}
	if len(resp.Cookies) == 0 {
		return nil, time.Time{}, fmt.Errorf("login response set no cookies")
	}
	return resp.Cookies, time.Now().Add(sessionTTL), nil
}

func (a *FormAuthenticator) loginPath() string {
	if a.settings.LoginPath != "" {
		return a.settings.LoginPath
	}
	return "/login"
}

func (a *FormAuthenticator) usernameField() string {
	if a.settings.UsernameField != "" {
		return a.settings.UsernameField
	}
	return "username"
}

func (a *FormAuthenticator) passwordField() string {
	if a.settings.PasswordField != "" {
		return a.settings.PasswordField
	}
	return "password"
}

// retryFunc builds the one-shot download retry hook: when the download
// response is a token-exhaustion page, extract the alternate link and try
// that instead.
func retryFunc(settings Settings) func(string, *indexer.Response) (string, bool) {
	return func(link string, resp *indexer.Response) (string, bool) {
		ct := resp.ContentType()
		if ct != "" && !strings.Contains(ct, "html") {
			return "", false
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
		if err != nil {
			return "", false
		}
		if doc.Find(settings.Selectors.TokenExhausted).Length() == 0 {
			return "", false
		}
		alt, _ := doc.Find(settings.Selectors.AltDownload).First().Attr("href")
		if alt == "" || alt == link {
			return "", false
		}
		return alt, true
	}
}
