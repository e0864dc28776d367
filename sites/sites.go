package sites

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"datasetscraper/downloader"
	"datasetscraper/models"
	"datasetscraper/parser"
)

// maxPrefixLen caps search-term filename prefixes, in characters
const maxPrefixLen = 20

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// GenericSite handles any gallery page through CSS selectors
type GenericSite struct{}

var _ downloader.SitePlugin = (*GenericSite)(nil)

func (g *GenericSite) Name() string { return "generic" }
func (g *GenericSite) DisplayName() string { return "Generic gallery" }
func (g *GenericSite) Mode() models.Mode { return models.ModeGeneric }
func (g *GenericSite) Matchers() []parser.Matcher { return nil }
func (g *GenericSite) Filter() *parser.URLFilter { return nil }
func (g *GenericSite) FilenamePrefix(string) string { return downloader.DefaultFilenamePrefix }

// GenericSearchSite applies the default search rules to an unknown engine,
// used when search mode is forced on a page no registered site claims.
type GenericSearchSite struct{}

var _ downloader.SitePlugin = (*GenericSearchSite)(nil)

func (g *GenericSearchSite) Name() string { return "search" }
func (g *GenericSearchSite) DisplayName() string { return "Search results" }
func (g *GenericSearchSite) Mode() models.Mode { return models.ModeSearch }
func (g *GenericSearchSite) Matchers() []parser.Matcher { return parser.DefaultSearchMatchers() }
func (g *GenericSearchSite) Filter() *parser.URLFilter { return parser.DefaultSearchFilter() }

func (g *GenericSearchSite) FilenamePrefix(pageURL string) string {
	return SearchTermPrefix(pageURL, downloader.DefaultFilenamePrefix)
}

// SearchTermPrefix turns the q= parameter of pageURL into a filename
// prefix: spaces become underscores, anything but letters, digits, '_'
// and '-' is dropped, and the result is cut to 20 characters.
// fallback is returned when there is no usable term.
func SearchTermPrefix(pageURL, fallback string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fallback
	}
	term := strings.TrimSpace(u.Query().Get("q"))
	if term == "" {
		return fallback
	}

	term = strings.Join(strings.Fields(term), "_")
	term = nonWordRe.ReplaceAllString(term, "")
	if utf8.RuneCountInString(term) > maxPrefixLen {
		term = string([]rune(term)[:maxPrefixLen])
	}
	term = strings.Trim(term, "_-")
	if term == "" {
		return fallback
	}
	return term
}
