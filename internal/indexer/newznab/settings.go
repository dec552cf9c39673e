// Package newznab implements the Newznab/Torznab API protocol: request
// generation against the standard query surface, caps endpoint discovery
// and RSS response parsing.
package newznab

import (
	"fmt"
	"strings"
	"time"
)

// Settings holds per-provider configuration for a Newznab-style API.
type Settings struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
	APIPath string `json:"apiPath,omitempty" yaml:"apiPath,omitempty"`
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`

	// VipExpiration is the optional account expiry date (yyyy-mm-dd) for
	// trackers with paid tiers, surfaced as a warning when lapsed or about
	// to lapse.
	VipExpiration string `json:"vipExpiration,omitempty" yaml:"vipExpiration,omitempty"`

	// TimezoneOffset is the provider's documented UTC offset ("+02:00"),
	// applied to feed dates that carry no zone information.
	TimezoneOffset string `json:"timezoneOffset,omitempty" yaml:"timezoneOffset,omitempty"`
}

// vipWarningWindow is how far ahead of the expiry date a renewal warning
// starts showing.
const vipWarningWindow = 7 * 24 * time.Hour

// VipWarnings reports advisories for trackers with paid tiers: an expired
// VIP date or one inside the warning window. Nil when no expiry is
// configured; an unparseable date is itself reported so the definition can
// be corrected.
func (s Settings) VipWarnings(now time.Time) []string {
	if s.VipExpiration == "" {
		return nil
	}
	expiry, err := time.Parse("2006-01-02", s.VipExpiration)
	if err != nil {
		return []string{fmt.Sprintf("invalid VIP expiration date %q", s.VipExpiration)}
	}
	if !expiry.After(now) {
		return []string{fmt.Sprintf("VIP access expired on %s", s.VipExpiration)}
	}
	if expiry.Sub(now) <= vipWarningWindow {
		return []string{fmt.Sprintf("VIP access expires on %s", s.VipExpiration)}
	}
	return nil
}

// Validate checks required settings.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}

// APIURL returns the provider's API endpoint.
func (s *Settings) APIURL() string {
	path := s.APIPath
	if path == "" {
		path = "/api"
	}
	return strings.TrimSuffix(s.BaseURL, "/") + path
}
