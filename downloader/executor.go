package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datasetscraper/cf"
	"datasetscraper/config"

	log "github.com/sirupsen/logrus"
)

// RequestExecutor tries the primary page backend and, when enabled, falls
// back to a headless browser on failures that are not anti-bot challenges.
type RequestExecutor struct {
	primary  PageFetcher
	fallback PageFetcher
}

func NewRequestExecutor(primary, fallback PageFetcher) *RequestExecutor {
	return &RequestExecutor{primary: primary, fallback: fallback}
}

// FetchPage fetches HTML with automatic fallback
func (e *RequestExecutor) FetchPage(ctx context.Context, pageURL string) (string, error) {
	log.Infof("[Executor] Fetching: %s", pageURL)

	html, err := e.primary.FetchPage(ctx, pageURL)
	if err == nil {
		return html, nil
	}

	// A challenge page would be served to the browser as well
	if _, isChallenge := cf.IsChallenge(err); isChallenge {
		log.Warnf("[Executor] Challenge detected - needs manual solve")
		return "", asFetchError(pageURL, err)
	}

	if e.fallback == nil || ctx.Err() != nil {
		return "", asFetchError(pageURL, err)
	}

	log.Warnf("[Executor] Primary fetch failed (%v), trying browser fallback...", err)
	html, fbErr := e.fallback.FetchPage(ctx, pageURL)
	if fbErr != nil {
		log.Errorf("[Executor] Browser fallback failed: %v", fbErr)
		fe := asFetchError(pageURL, err)
		return "", &FetchError{URL: fe.URL, StatusCode: fe.StatusCode, Err: errors.Join(fe.Err, fbErr)}
	}

	log.Infof("[Executor] ✓ Browser fallback successful")
	return html, nil
}

// NewFetchers builds the page fetcher and image client described by cfg.
func NewFetchers(cfg *config.Config) (PageFetcher, *HTTPClient, error) {
	opts := []ClientOption{
		WithUserAgent(cfg.UserAgent),
		WithAcceptLanguage(cfg.AcceptLanguage),
		WithTimeout(cfg.RequestTimeout),
		WithPageRetries(cfg.PageRetries, time.Second),
	}
	if cfg.OpenChallenge {
		opts = append(opts, WithChallengeHandler(func(challengeURL string, info *cf.Info) {
			if err := cf.OpenInBrowser(challengeURL); err != nil {
				log.Warnf("[Executor] Failed to open challenge in browser: %v", err)
			}
		}))
	}

	client, err := NewHTTPClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	client.DebugSaveHTMLPath = cfg.DebugSaveHTML

	var primary PageFetcher
	switch cfg.Backend {
	case config.BackendHTTP, "":
		primary = client
	case config.BackendColly:
		primary = NewCollyFetcher(client)
	case config.BackendBrowser:
		return NewBrowserFetcher(client, cfg.WaitSelector), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetch backend %q", cfg.Backend)
	}

	var fallback PageFetcher
	if cfg.BrowserFallback {
		fallback = NewBrowserFetcher(client, cfg.WaitSelector)
	}
	return NewRequestExecutor(primary, fallback), client, nil
}
