package downloader

import (
	"context"
	"fmt"
	"time"

	"datasetscraper/cf"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

// BrowserSession manages a headless chromedp browser context
type BrowserSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	headers network.Headers
	timeout time.Duration
}

// NewBrowserSession starts a headless browser using the client's user agent and headers
func NewBrowserSession(ctx context.Context, client *HTTPClient) (*BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(client.userAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Chrome sets its own User-Agent and Accept-Encoding
	headers := network.Headers{}
	for k, v := range client.Headers() {
		switch k {
		case "User-Agent", "Accept-Encoding":
			continue
		}
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	timeout := 2 * client.timeout
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}

	return &BrowserSession{
		ctx:     browserCtx,
		cancel:  func() { cancelBrowser(); cancelAlloc() },
		headers: headers,
		timeout: timeout,
	}, nil
}

// Navigate loads url and waits for the body, or waitSelector when given
func (bs *BrowserSession) Navigate(url string, waitSelector string) error {
	ctx, cancel := context.WithTimeout(bs.ctx, bs.timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(bs.headers),
		chromedp.Navigate(url),
	}
	if waitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body"))
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	log.Debugf("[Browser] ✓ Navigation successful: %s", url)
	return nil
}

// GetHTML returns the rendered page HTML
func (bs *BrowserSession) GetHTML() (string, error) {
	ctx, cancel := context.WithTimeout(bs.ctx, 10*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

// Close closes the browser session
func (bs *BrowserSession) Close() {
	if bs.cancel != nil {
		bs.cancel()
	}
}

// BrowserFetcher renders pages in a fresh headless browser per fetch.
type BrowserFetcher struct {
	client       *HTTPClient
	waitSelector string
}

func NewBrowserFetcher(client *HTTPClient, waitSelector string) *BrowserFetcher {
	return &BrowserFetcher{client: client, waitSelector: waitSelector}
}

func (f *BrowserFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	log.Infof("[Browser] Starting browser fetch for: %s", pageURL)

	session, err := NewBrowserSession(ctx, f.client)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("failed to create browser session: %w", err)}
	}
	defer session.Close()

	if err := session.Navigate(pageURL, f.waitSelector); err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	html, err := session.GetHTML()
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("failed to get HTML from browser: %w", err)}
	}

	// chromedp gives no status code, assume 200 for detection
	if isChallenge, info := cf.DetectBody(200, nil, []byte(html)); isChallenge {
		challengeURL := cf.ChallengeURL(info, pageURL)
		if f.client.onChallenge != nil {
			f.client.onChallenge(challengeURL, info)
		}
		return "", &FetchError{URL: pageURL, Err: cf.NewChallengeError(challengeURL, info)}
	}

	log.Infof("[Browser] ✓ Browser fetch successful (%d bytes)", len(html))
	return html, nil
}
