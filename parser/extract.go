package parser

import (
	"net/url"
	"strings"

	"datasetscraper/models"

	log "github.com/sirupsen/logrus"
)

// DefaultSelector is used in generic mode when no selector is given
const DefaultSelector = "img"

// ExtractOptions controls one extraction run.
type ExtractOptions struct {
	Mode     models.Mode
	Selector string          // generic mode only
	Limit    int             // stop once this many candidates are found, 0 = no limit
	Matchers []Matcher       // search mode, nil = DefaultSearchMatchers()
	Filter   *URLFilter      // search mode, nil = DefaultSearchFilter()
	Seen     *models.SeenSet // nil = fresh set for this run
}

// Extract returns candidate image URLs found in page, in discovery order.
// It never fails: a page with nothing usable yields an empty slice.
func Extract(page, pageURL string, opts ExtractOptions) []models.CandidateURL {
	base, err := url.Parse(pageURL)
	if err != nil {
		log.Warnf("[Extract] Bad page URL %q: %v", pageURL, err)
		base = &url.URL{}
	}

	seen := opts.Seen
	if seen == nil {
		seen = models.NewSeenSet()
	}

	var out []models.CandidateURL
	switch opts.Mode {
	case models.ModeSearch:
		matchers := opts.Matchers
		if matchers == nil {
			matchers = DefaultSearchMatchers()
		}
		filter := opts.Filter
		if filter == nil {
			filter = DefaultSearchFilter()
		}
		out = extractSearch(page, base, matchers, filter, seen, opts.Limit)
	default:
		selector := strings.TrimSpace(opts.Selector)
		if selector == "" {
			selector = DefaultSelector
		}
		out = extractGeneric(page, base, selector, seen, opts.Limit)
	}

	log.Infof("[Extract] %d candidate(s) from %s (mode=%s)", len(out), pageURL, modeName(opts.Mode))
	return out
}

func modeName(m models.Mode) string {
	if m == models.ModeSearch {
		return string(models.ModeSearch)
	}
	return string(models.ModeGeneric)
}

// resolve turns raw into an absolute http(s) URL relative to base.
func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}
