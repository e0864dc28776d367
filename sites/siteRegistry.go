package sites

import (
	"net/url"
	"strings"

	"datasetscraper/downloader"
	"datasetscraper/models"

	log "github.com/sirupsen/logrus"
)

// SearchSite is a search engine whose result pages are scanned with matchers
type SearchSite interface {
	downloader.SitePlugin
	// Matches reports whether u is one of this engine's image result pages
	Matches(u *url.URL) bool
}

// Registry maps page URLs to site rules. Search sites are checked in
// registration order; anything unmatched is a generic gallery.
type Registry struct {
	search  []SearchSite
	generic downloader.SitePlugin
}

// Ensure Registry implements SiteResolver
var _ downloader.SiteResolver = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{generic: &GenericSite{}}
}

// DefaultRegistry knows Google Images and Bing Images
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GoogleImagesSite{})
	r.Register(&BingImagesSite{})
	return r
}

// Register adds a search site
func (r *Registry) Register(s SearchSite) {
	r.search = append(r.search, s)
}

// Resolve picks the rules for pageURL. An explicit mode wins over detection.
func (r *Registry) Resolve(pageURL string, override models.Mode) downloader.SitePlugin {
	matched := r.match(pageURL)

	switch override {
	case models.ModeGeneric:
		return r.generic
	case models.ModeSearch:
		if matched != nil {
			return matched
		}
		log.Infof("[Sites] No search rules for %s, using defaults", pageURL)
		return &GenericSearchSite{}
	}

	if matched != nil {
		return matched
	}
	return r.generic
}

// Detect reports which site pageURL belongs to
func (r *Registry) Detect(pageURL string) models.Site {
	return describe(r.Resolve(pageURL, models.ModeAuto))
}

// List returns every known site, generic last
func (r *Registry) List() []models.Site {
	out := make([]models.Site, 0, len(r.search)+1)
	for _, s := range r.search {
		out = append(out, describe(s))
	}
	return append(out, describe(r.generic))
}

func (r *Registry) match(pageURL string) SearchSite {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Host == "" {
		return nil
	}
	for _, s := range r.search {
		if s.Matches(u) {
			return s
		}
	}
	return nil
}

func describe(p downloader.SitePlugin) models.Site {
	return models.Site{Name: p.Name(), DisplayName: p.DisplayName(), Mode: p.Mode()}
}
