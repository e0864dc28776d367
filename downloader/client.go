package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"datasetscraper/cf"

	"github.com/gocolly/colly"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is a current desktop Chrome
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	acceptDocument = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptImage    = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
)

// ChallengeHandler is told about anti-bot pages, e.g. to open them for a manual solve
type ChallengeHandler func(challengeURL string, info *cf.Info)

// HTTPClient sends browser-like requests for pages and images.
// It keeps cookies across requests, decodes gzip/brotli bodies and
// reports anti-bot challenges as *cf.ChallengeError.
type HTTPClient struct {
	httpClient     *http.Client
	userAgent      string
	acceptLanguage string
	timeout        time.Duration
	maxRetries     int
	backoffBase    time.Duration
	onChallenge    ChallengeHandler

	// DEBUG: write every fetched page here
	DebugSaveHTMLPath string
}

// ClientOption configures an HTTPClient
type ClientOption func(*HTTPClient)

func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithAcceptLanguage(lang string) ClientOption {
	return func(c *HTTPClient) {
		if lang != "" {
			c.acceptLanguage = lang
		}
	}
}

// WithTimeout bounds every single request
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPageRetries sets how often a timed out page fetch is retried
func WithPageRetries(n int, backoffBase time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRetries = n
		}
		c.backoffBase = backoffBase
	}
}

func WithChallengeHandler(h ChallengeHandler) ClientOption {
	return func(c *HTTPClient) { c.onChallenge = h }
}

func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *HTTPClient) { c.httpClient.Transport = rt }
}

// NewHTTPClient creates a client with a public-suffix aware cookie jar
func NewHTTPClient(opts ...ClientOption) (*HTTPClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &HTTPClient{
		httpClient:     &http.Client{Jar: jar},
		userAgent:      DefaultUserAgent,
		acceptLanguage: "en-US,en;q=0.9",
		timeout:        30 * time.Second,
		maxRetries:     2,
		backoffBase:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchPage fetches HTML content with retry on timeouts.
// Every failure is returned as *FetchError.
func (c *HTTPClient) FetchPage(ctx context.Context, pageURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("[HTTPClient] Retry attempt %d/%d for: %s", attempt, c.maxRetries, pageURL)
		}

		html, err := c.fetchPageAttempt(ctx, pageURL)
		if err == nil {
			if attempt > 0 {
				log.Infof("[HTTPClient] ✓ Success after %d retries", attempt)
			}
			return html, nil
		}
		lastErr = err

		// Challenges and HTTP errors won't fix themselves on retry
		if !isTimeout(err) || ctx.Err() != nil {
			return "", err
		}

		log.Warnf("[HTTPClient] ⚠️ Timeout on attempt %d/%d: %v", attempt+1, c.maxRetries+1, err)

		if attempt < c.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * c.backoffBase
			log.Debugf("[HTTPClient] Waiting %v before retry...", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", asFetchError(pageURL, err)
			}
		}
	}

	log.Errorf("[HTTPClient] ✗ Failed after %d attempts", c.maxRetries+1)
	return "", lastErr
}

// fetchPageAttempt performs a single page request
func (c *HTTPClient) fetchPageAttempt(ctx context.Context, pageURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.applyBrowserHeaders(req.Header, "document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	decompressed, wasCompressed, err := cf.DecompressBody(bodyBytes, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decompress response: %w", err)}
	}
	if wasCompressed {
		log.Debugf("[HTTPClient] ✓ Decompressed response: %d → %d bytes", len(bodyBytes), len(decompressed))
		bodyBytes = decompressed
	}

	if c.DebugSaveHTMLPath != "" {
		if err := os.WriteFile(c.DebugSaveHTMLPath, bodyBytes, 0644); err != nil {
			log.Warnf("[HTTPClient][DEBUG] Failed to save HTML: %v", err)
		} else {
			log.Debugf("[HTTPClient][DEBUG] Saved full HTML to %s", c.DebugSaveHTMLPath)
		}
	}

	if isChallenge, info := cf.DetectBody(resp.StatusCode, resp.Header, bodyBytes); isChallenge {
		// Google sends blocked searches through /sorry/
		if resp.Request != nil && strings.HasPrefix(resp.Request.URL.Path, "/sorry/") {
			info.Indicators = append(info.Indicators, "Google /sorry/ redirect")
		}
		challengeURL := cf.ChallengeURL(info, pageURL)
		if c.onChallenge != nil {
			c.onChallenge(challengeURL, info)
		}
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: cf.NewChallengeError(challengeURL, info)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	return string(bodyBytes), nil
}

// GetImage performs one image request. The caller owns the body on success.
func (c *HTTPClient) GetImage(ctx context.Context, imageURL, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyBrowserHeaders(req.Header, "image")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := resp.Body
		resp.Body = io.NopCloser(io.LimitReader(body, 64<<10))
		if isChallenge, info, _ := cf.Detect(resp); isChallenge {
			log.Debugf("[HTTP] Image %s blocked (%s)", imageURL, info.Provider)
		}
		body.Close()
		return nil, &statusError{code: resp.StatusCode}
	}
	return resp, nil
}

// applyBrowserHeaders sets the header set a desktop Chrome sends.
// dest is the Sec-Fetch-Dest value: "document" or "image".
func (c *HTTPClient) applyBrowserHeaders(h http.Header, dest string) {
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept-Language", c.acceptLanguage)
	h.Set("Sec-Fetch-Dest", dest)

	if dest == "document" {
		// Set explicitly so the transport leaves decoding to cf.DecompressBody
		h.Set("Accept", acceptDocument)
		h.Set("Accept-Encoding", "gzip, deflate, br")
		h.Set("Upgrade-Insecure-Requests", "1")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "none")
		h.Set("Sec-Fetch-User", "?1")
	} else {
		h.Set("Accept", acceptImage)
		h.Set("Sec-Fetch-Mode", "no-cors")
		h.Set("Sec-Fetch-Site", "cross-site")
	}

	if strings.Contains(c.userAgent, "Chrome") {
		h.Set("sec-ch-ua", `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`)
		h.Set("sec-ch-ua-mobile", "?0")
		h.Set("sec-ch-ua-platform", `"Windows"`)
	}
}

// Headers returns the document header set, for other backends
func (c *HTTPClient) Headers() http.Header {
	h := make(http.Header)
	c.applyBrowserHeaders(h, "document")
	return h
}

// CreateCollyCollector creates a colly collector sharing this client's
// headers and timeout.
func (c *HTTPClient) CreateCollyCollector() *colly.Collector {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(c.userAgent),
	)
	collector.SetRequestTimeout(c.timeout)

	headers := c.Headers()
	collector.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			if len(v) > 0 {
				r.Headers.Set(k, v[0])
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if _, err := cf.DecompressResponse(r, "[Colly]"); err != nil {
			log.Warnf("[Colly] Failed to decompress: %v", err)
		}
	})

	return collector
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
