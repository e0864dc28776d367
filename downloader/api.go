package downloader

import (
	"context"
	"fmt"

	"datasetscraper/cf"

	"github.com/gocolly/colly"
	log "github.com/sirupsen/logrus"
)

// CollyFetcher fetches pages through a colly collector built from an HTTPClient
type CollyFetcher struct {
	client *HTTPClient
}

func NewCollyFetcher(client *HTTPClient) *CollyFetcher {
	return &CollyFetcher{client: client}
}

// FetchPage visits pageURL with a fresh collector so callbacks never pile up
func (f *CollyFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	collector := f.client.CreateCollyCollector()

	var (
		last       *colly.Response
		body       []byte
		statusCode int
		fetchErr   error
	)

	// Decompression callback from CreateCollyCollector runs first
	collector.OnResponse(func(r *colly.Response) {
		last = r
		statusCode = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
			if len(r.Body) > 0 {
				if _, derr := cf.DecompressResponse(r, "[Colly]"); derr == nil {
					last = r
					body = r.Body
				}
			}
		}
		fetchErr = err
	})

	log.Infof("[Colly] Visiting: %s", pageURL)
	if err := collector.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}

	if len(body) > 0 {
		if isChallenge, info := cf.DetectFromColly(last); isChallenge {
			challengeURL := cf.ChallengeURL(info, pageURL)
			if f.client.onChallenge != nil {
				f.client.onChallenge(challengeURL, info)
			}
			return "", &FetchError{URL: pageURL, StatusCode: statusCode, Err: cf.NewChallengeError(challengeURL, info)}
		}
	}

	if fetchErr != nil {
		return "", &FetchError{URL: pageURL, StatusCode: statusCode, Err: fetchErr}
	}
	if statusCode < 200 || statusCode > 299 {
		return "", &FetchError{URL: pageURL, StatusCode: statusCode, Err: fmt.Errorf("%w from colly", ErrUnexpectedStatus)}
	}

	return string(body), nil
}
