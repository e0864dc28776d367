package sites

import (
	"net/url"
	"strings"

	"datasetscraper/models"
	"datasetscraper/parser"

	"golang.org/x/net/publicsuffix"
)

// GoogleImagesSite scans Google Images result pages.
// Full-size links live in the embedded result JSON ("ou" keys) or as
// plain URLs in script blocks; thumbnails are inlined as base64.
type GoogleImagesSite struct{}

var _ SearchSite = (*GoogleImagesSite)(nil)

func (g *GoogleImagesSite) Name() string {
	return "google"
}

func (g *GoogleImagesSite) DisplayName() string {
	return "Google Images"
}

func (g *GoogleImagesSite) Mode() models.Mode {
	return models.ModeSearch
}

// Matches accepts google.<tld>/search with tbm=isch or udm=2, and images.google.<tld>
func (g *GoogleImagesSite) Matches(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if rest, ok := strings.CutPrefix(host, "images."); ok {
		return isGoogleDomain(rest)
	}
	if !isGoogleDomain(strings.TrimPrefix(host, "www.")) {
		return false
	}
	q := u.Query()
	return q.Get("tbm") == "isch" || q.Get("udm") == "2"
}

func (g *GoogleImagesSite) Matchers() []parser.Matcher {
	return parser.DefaultSearchMatchers()
}

func (g *GoogleImagesSite) Filter() *parser.URLFilter {
	f := parser.DefaultSearchFilter()
	f.Skip = append(f.Skip, "/images/branding/", "/textinputassistant/")
	return f
}

func (g *GoogleImagesSite) FilenamePrefix(pageURL string) string {
	return SearchTermPrefix(pageURL, "google_images")
}

// isGoogleDomain reports whether host is google.<public suffix>,
// e.g. google.com or google.co.uk but not google.example.com
func isGoogleDomain(host string) bool {
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && domain == host && strings.HasPrefix(host, "google.")
}
