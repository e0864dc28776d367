package parser

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"datasetscraper/models"

	log "github.com/sirupsen/logrus"
)

// Match is one hit from a Matcher.
type Match struct {
	Raw     string // Full matched text
	URL     string // Captured URL (may still contain escapes)
	Discard bool   // Recognized but never emitted (inline thumbnails)
}

// Matcher finds image references in raw page text.
type Matcher interface {
	Name() string
	Find(text string) []Match
}

// RegexpMatcher is a Matcher backed by one regular expression.
type RegexpMatcher struct {
	name    string
	re      *regexp.Regexp
	group   int
	discard bool
}

// NewRegexpMatcher compiles pattern. group selects the capture holding the URL (0 = whole match).
func NewRegexpMatcher(name, pattern string, group int) (*RegexpMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexpMatcher{name: name, re: re, group: group}, nil
}

// MustRegexpMatcher is NewRegexpMatcher for package-level defaults.
func MustRegexpMatcher(name, pattern string, group int) *RegexpMatcher {
	m, err := NewRegexpMatcher(name, pattern, group)
	if err != nil {
		panic(err)
	}
	return m
}

// Discarding marks every hit as recognized-but-dropped.
func (m *RegexpMatcher) Discarding() *RegexpMatcher {
	m.discard = true
	return m
}

func (m *RegexpMatcher) Name() string { return m.name }

func (m *RegexpMatcher) Find(text string) []Match {
	hits := m.re.FindAllStringSubmatch(text, -1)
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if m.group >= len(h) {
			continue
		}
		matches = append(matches, Match{Raw: h[0], URL: h[m.group], Discard: m.discard})
	}
	return matches
}

// DefaultSearchMatchers returns the built-in rules in priority order.
// A fresh slice is returned so callers can append or reorder freely.
func DefaultSearchMatchers() []Matcher {
	return []Matcher{
		// Links ending in an image extension, anywhere in the text
		MustRegexpMatcher("direct-extension",
			`(?i)https?://[^\s"'<>()\[\]{}\\]+\.(?:jpe?g|png|webp|gif)\b(?:\?[^\s"'<>()\[\]{}\\]*)?`, 0),
		// Full-resolution original keys in embedded result data
		MustRegexpMatcher("original-key",
			`"(?:ou|murl|imgurl)"\s*:\s*"(https?://[^"]+)"`, 1),
		// Base64 thumbnails inlined by the search page
		MustRegexpMatcher("inline-thumbnail",
			`data:image/[a-zA-Z+.-]+;base64,[A-Za-z0-9+/=]+`, 0).Discarding(),
		// Any quoted http string mentioning an image extension
		MustRegexpMatcher("quoted-catch-all",
			`(?i)["'](https?://[^"'\s]*?\.(?:jpe?g|png|webp|gif)[^"'\s]*)["']`, 1),
		// CSS backgrounds
		MustRegexpMatcher("css-url",
			`(?i)url\(\s*["']?(https?://[^"')\s]+\.(?:jpe?g|png|webp|gif)[^"')\s]*)["']?\s*\)`, 1),
	}
}

// URLFilter rejects search-mode hits that are page chrome rather than results.
type URLFilter struct {
	MinLength int
	Skip      []string // lowercase substrings
}

// DefaultSearchFilter drops branding, icons and too-short matches
func DefaultSearchFilter() *URLFilter {
	return &URLFilter{
		MinLength: 16,
		Skip: []string{
			"gstatic.com/images/branding",
			"googlelogo",
			"/logos/",
			"favicon",
			"logo",
			"icon",
			"sprite",
			"/images/nav_",
			"bing.com/rp/",
			"bing.com/sa/simg/",
		},
	}
}

// Allow reports whether u passes the filter
func (f *URLFilter) Allow(u string) bool {
	if len(u) < f.MinLength {
		return false
	}
	lower := strings.ToLower(u)
	for _, s := range f.Skip {
		if strings.Contains(lower, s) {
			return false
		}
	}
	return true
}

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// DecodeEscapes undoes JavaScript string escaping seen in embedded data:
// escaped slashes and \uXXXX sequences.
func DecodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	s = unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
	return strings.ReplaceAll(s, `\/`, `/`)
}

func extractSearch(page string, base *url.URL, matchers []Matcher, filter *URLFilter, seen *models.SeenSet, limit int) []models.CandidateURL {
	// Entities first, then JS escapes, so both &quot; and \" forms line up
	text := DecodeEscapes(html.UnescapeString(page))

	var out []models.CandidateURL
	for _, m := range matchers {
		found, discarded, filtered := 0, 0, 0
		for _, hit := range m.Find(text) {
			if hit.Discard {
				discarded++
				continue
			}
			resolved, ok := resolve(base, DecodeEscapes(hit.URL))
			if !ok || !filter.Allow(resolved) {
				filtered++
				continue
			}
			if !seen.Add(resolved) {
				continue
			}
			out = append(out, models.CandidateURL{Raw: hit.Raw, Resolved: resolved, Pattern: m.Name()})
			found++
			if limit > 0 && len(out) >= limit {
				log.Debugf("[Extract] %s: limit %d reached", m.Name(), limit)
				return out
			}
		}
		log.Debugf("[Extract] %s: %d new, %d filtered, %d discarded", m.Name(), found, filtered, discarded)
	}
	return out
}
