package parser

import (
	"net/url"
	"path"
	"strings"

	"datasetscraper/models"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// Attributes tried after src when src is missing or a lazy-load placeholder
var lazyAttrs = []string{"data-src", "data-original", "data-lazy", "data-lazy-src", "data-url"}

// Attributes holding a srcset-style list
var srcsetAttrs = []string{"srcset", "data-srcset"}

var placeholderHints = []string{"blank.gif", "spacer.gif", "pixel.gif", "transparent.gif", "placeholder", "lazy-load", "lazyload"}

func extractGeneric(page string, base *url.URL, selector string, seen *models.SeenSet, limit int) []models.CandidateURL {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Warnf("[Extract] Failed to parse HTML: %v", err)
		return nil
	}

	// <base href> overrides the page URL for relative links
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	var out []models.CandidateURL
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := elementImageURL(s)
		if raw == "" {
			return true
		}
		resolved, ok := resolve(base, raw)
		if !ok {
			log.Debugf("[Extract] Skipping non-http source: %.80s", raw)
			return true
		}
		if !seen.Add(resolved) {
			return true
		}
		out = append(out, models.CandidateURL{Raw: raw, Resolved: resolved, Pattern: selector})
		return limit <= 0 || len(out) < limit
	})

	return out
}

// elementImageURL picks the best image reference from a matched element.
func elementImageURL(s *goquery.Selection) string {
	if raw := imageAttr(s); raw != "" {
		return raw
	}

	// Linked full-size image, e.g. <a href="big.jpg"><img src="thumb.jpg"></a>
	if href, ok := s.Attr("href"); ok && looksLikeImagePath(href) {
		return strings.TrimSpace(href)
	}

	if goquery.NodeName(s) != "img" {
		if img := s.Find("img").First(); img.Length() > 0 {
			return imageAttr(img)
		}
	}
	return ""
}

// imageAttr walks src, the lazy-load attributes and srcset lists in order.
// A placeholder src is used only when nothing better exists.
func imageAttr(s *goquery.Selection) string {
	src := strings.TrimSpace(s.AttrOr("src", ""))
	if src != "" && !isPlaceholder(src) {
		return src
	}

	for _, attr := range lazyAttrs {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" && !isPlaceholder(v) {
			return v
		}
	}

	for _, attr := range srcsetAttrs {
		if v := firstSrcsetEntry(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}

	return src
}

func isPlaceholder(v string) bool {
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "data:") {
		return true
	}
	for _, hint := range placeholderHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// firstSrcsetEntry returns the URL of the first "url [descriptor]" entry
func firstSrcsetEntry(srcset string) string {
	srcset = strings.TrimSpace(srcset)
	if srcset == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(srcset, ",")[0])
	if fields := strings.Fields(first); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func looksLikeImagePath(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return IsImageExt(path.Ext(u.Path))
}
