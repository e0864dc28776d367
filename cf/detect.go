package cf

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gocolly/colly"
	log "github.com/sirupsen/logrus"
)

// Info describes an anti-bot interstitial found in a response.
type Info struct {
	StatusCode int
	Provider   string // "cloudflare", "google" or "generic"
	Reason     string
	Indicators []string

	// Extracted fields
	RayID        string
	MetaRedirect string
	FormAction   string
	CHLTokens    []string
	Turnstile    bool
	IsBIC        bool // Browser Integrity Check
	ServerHeader string
}

type indicator struct {
	substr   string
	reason   string
	provider string
}

// Each of these alone marks the page as a challenge.
var strongChecks = []indicator{
	{"cloudflare-browser-verification", "JS browser verification challenge", "cloudflare"},
	{"challenge-form", "Cloudflare challenge form", "cloudflare"},
	{"cf-chl-", "Cloudflare challenge token", "cloudflare"},
	{"attention required", "Cloudflare BIC", "cloudflare"},
	{"checking your browser", "Cloudflare browser check", "cloudflare"},
	{"verify you are human", "Human verification", "generic"},
	{"our systems have detected unusual traffic", "Google unusual traffic page", "google"},
	{"/recaptcha/api.js", "reCAPTCHA challenge", "generic"},
	{"action=\"https://consent.google.com", "Google consent wall", "google"},
}

// These count only when a strong indicator is also present. CF-proxied
// sites embed the challenge-platform script on normal pages too.
var weakChecks = []indicator{
	{"/cdn-cgi/challenge-platform/", "Cloudflare challenge JS", "cloudflare"},
}

var (
	justAMomentRe  = regexp.MustCompile(`(?i)<title[^>]*>[^<]*just a moment[^<]*</title>`)
	chlTokenRe     = regexp.MustCompile(`cf_chl_[a-zA-Z0-9_-]+`)
	formActionRe   = regexp.MustCompile(`<form[^>]+id="challenge-form"[^>]+action="([^"]+)"`)
	metaRedirectRe = regexp.MustCompile(`<meta[^>]+http-equiv="?refresh"?[^>]+url=([^">]+)`)
)

// Detect inspects an HTTP response and reports whether it is an
// anti-bot challenge. The body is restored so the caller can still read it.
func Detect(resp *http.Response) (bool, *Info, error) {
	if resp == nil {
		return false, nil, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	isChallenge, info := DetectBody(resp.StatusCode, resp.Header, bodyBytes)
	if isChallenge && resp.Request != nil && resp.Request.URL != nil {
		// Google redirects blocked searches to /sorry/index
		if strings.HasPrefix(resp.Request.URL.Path, "/sorry/") {
			info.Indicators = append(info.Indicators, "Google /sorry/ redirect")
		}
	}
	return isChallenge, info, nil
}

// DetectBody is Detect for an already read response.
func DetectBody(statusCode int, header http.Header, bodyBytes []byte) (bool, *Info) {
	body := strings.ToLower(string(bodyBytes))

	info := &Info{
		StatusCode: statusCode,
		Indicators: []string{},
	}
	if header != nil {
		info.ServerHeader = header.Get("Server")
		info.RayID = header.Get("CF-Ray")
	}

	match := false

	switch statusCode {
	case http.StatusForbidden:
		info.Indicators = append(info.Indicators, "403 Forbidden")
		match = true
	case http.StatusServiceUnavailable:
		info.Indicators = append(info.Indicators, "503 Service Unavailable")
		match = true
	case http.StatusTooManyRequests:
		// informational only
		info.Indicators = append(info.Indicators, "429 Rate limit")
	}

	if strings.Contains(strings.ToLower(info.ServerHeader), "cloudflare") {
		info.Provider = "cloudflare"
	}

	if header != nil {
		for _, cookie := range header.Values("Set-Cookie") {
			if strings.Contains(cookie, "cf_clearance") {
				info.Indicators = append(info.Indicators, "New cf_clearance cookie in response")
				match = true
			}
		}
	}

	strongMatch := false
	for _, c := range strongChecks {
		if strings.Contains(body, c.substr) {
			info.Indicators = append(info.Indicators, c.reason)
			info.Provider = c.provider
			match = true
			strongMatch = true
			log.Debugf("[Challenge] Strong indicator '%s' (%s)", c.substr, c.reason)
		}
	}

	// "just a moment" only counts inside <title>; the phrase shows up in
	// ordinary page text often enough to cause false positives.
	if justAMomentRe.MatchString(body) {
		info.Indicators = append(info.Indicators, "Cloudflare challenge page")
		info.Provider = "cloudflare"
		match = true
		strongMatch = true
	}

	for _, c := range weakChecks {
		if strings.Contains(body, c.substr) && strongMatch {
			info.Indicators = append(info.Indicators, c.reason)
		}
	}

	if strings.Contains(body, "verify you are human") {
		info.IsBIC = true
	}

	info.CHLTokens = chlTokenRe.FindAllString(body, -1)

	if m := formActionRe.FindStringSubmatch(body); len(m) > 1 {
		info.FormAction = m[1]
	}

	if m := metaRedirectRe.FindStringSubmatch(body); len(m) > 1 {
		info.MetaRedirect = strings.Trim(m[1], `'`)
	}

	if strings.Contains(body, "cf-turnstile") {
		info.Turnstile = true
		info.Provider = "cloudflare"
		info.Indicators = append(info.Indicators, "Turnstile CAPTCHA")
		match = true
	}

	if !match {
		return false, nil
	}

	if info.Provider == "" {
		info.Provider = "generic"
	}
	info.Reason = "anti-bot challenge detected"
	log.Warnf("[Challenge] %s challenge (status %d): %v", info.Provider, statusCode, info.Indicators)
	return true, info
}

// DetectFromColly wraps DetectBody so it can be used directly in colly callbacks
func DetectFromColly(r *colly.Response) (bool, *Info) {
	if r == nil {
		return false, nil
	}
	var header http.Header
	if r.Headers != nil {
		header = *r.Headers
	}
	return DetectBody(r.StatusCode, header, r.Body)
}

// ChallengeURL picks the best URL to show the user for a manual solve
func ChallengeURL(info *Info, originalURL string) string {
	if info == nil {
		return originalURL
	}
	if info.MetaRedirect != "" {
		return info.MetaRedirect
	}
	if info.FormAction != "" {
		return info.FormAction
	}
	return originalURL
}
