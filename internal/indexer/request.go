package indexer

import (
	"net/http"
	"strings"
	"time"
)

// Request is one constructed outbound request plus metadata.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   string // form-encoded body for POST logins

	// Paged marks continuation pages within a pagination chain.
	Paged bool
}

// NewRequest builds a GET request for the given URL.
func NewRequest(url string) *Request {
	return &Request{Method: http.MethodGet, URL: url, Header: http.Header{}}
}

// SetCookies attaches a cookie map as a single Cookie header.
func (r *Request) SetCookies(cookies map[string]string) {
	if len(cookies) == 0 {
		return
	}
	pairs := make([]string, 0, len(cookies))
	for name, value := range cookies {
		pairs = append(pairs, name+"="+value)
	}
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set("Cookie", strings.Join(pairs, "; "))
}

// TierMode controls how a request chain's tiers are exhausted.
type TierMode int

const (
	// TierFallback stops at the first tier producing results.
	TierFallback TierMode = iota
	// TierAll executes every tier and merges the output.
	TierAll
)

// RequestChain is an ordered sequence of tiers, each an ordered sequence of
// requests. Tiers model fallback query strategies: try by external ID first,
// fall back to a text query. Requests within one tier are pagination
// siblings and execute in order.
type RequestChain struct {
	mode  TierMode
	tiers [][]*Request
}

// NewRequestChain creates an empty chain.
func NewRequestChain(mode TierMode) *RequestChain {
	return &RequestChain{mode: mode}
}

// AddTier starts a new fallback tier.
func (c *RequestChain) AddTier() {
	c.tiers = append(c.tiers, nil)
}

// Add appends a request to the current tier, opening one if needed.
func (c *RequestChain) Add(req *Request) {
	if req == nil {
		return
	}
	if len(c.tiers) == 0 {
		c.AddTier()
	}
	last := len(c.tiers) - 1
	c.tiers[last] = append(c.tiers[last], req)
}

// Mode returns the tier exhaustion policy.
func (c *RequestChain) Mode() TierMode {
	return c.mode
}

// Tiers returns the chain contents, skipping tiers left empty.
func (c *RequestChain) Tiers() [][]*Request {
	out := make([][]*Request, 0, len(c.tiers))
	for _, tier := range c.tiers {
		if len(tier) > 0 {
			out = append(out, tier)
		}
	}
	return out
}

// Empty reports whether the chain holds no requests at all.
func (c *RequestChain) Empty() bool {
	for _, tier := range c.tiers {
		if len(tier) > 0 {
			return false
		}
	}
	return true
}

// Len returns the total request count across tiers.
func (c *RequestChain) Len() int {
	n := 0
	for _, tier := range c.tiers {
		n += len(tier)
	}
	return n
}

// Response is one raw transport response handed to a parser.
type Response struct {
	Request    *Request
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    map[string]string
	Elapsed    time.Duration
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// BodyExcerpt returns up to n bytes of the body for diagnostics.
func (r *Response) BodyExcerpt(n int) string {
	if len(r.Body) <= n {
		return string(r.Body)
	}
	return string(r.Body[:n]) + "..."
}
