package sites

import (
	"net/url"
	"strings"

	"datasetscraper/models"
	"datasetscraper/parser"
)

// BingImagesSite scans Bing Images result pages, where every tile carries
// an HTML-escaped JSON blob with the original under "murl".
type BingImagesSite struct{}

var _ SearchSite = (*BingImagesSite)(nil)

func (b *BingImagesSite) Name() string {
	return "bing"
}

func (b *BingImagesSite) DisplayName() string {
	return "Bing Images"
}

func (b *BingImagesSite) Mode() models.Mode {
	return models.ModeSearch
}

func (b *BingImagesSite) Matches(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host != "bing.com" && !strings.HasSuffix(host, ".bing.com") {
		return false
	}
	return strings.HasPrefix(u.Path, "/images")
}

// Matchers puts the murl key ahead of bare links so originals win over
// the tse*.mm.bing.net thumbnails that share the page.
func (b *BingImagesSite) Matchers() []parser.Matcher {
	defaults := parser.DefaultSearchMatchers()
	ordered := make([]parser.Matcher, 0, len(defaults))
	for _, m := range defaults {
		if m.Name() == "original-key" {
			ordered = append(ordered, m)
		}
	}
	for _, m := range defaults {
		if m.Name() != "original-key" {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

func (b *BingImagesSite) Filter() *parser.URLFilter {
	f := parser.DefaultSearchFilter()
	f.Skip = append(f.Skip, ".mm.bing.net/th")
	return f
}

func (b *BingImagesSite) FilenamePrefix(pageURL string) string {
	return SearchTermPrefix(pageURL, "bing_images")
}
