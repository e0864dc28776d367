package downloader

import (
	"context"
	"net/http"

	"datasetscraper/models"
	"datasetscraper/parser"
)

// PageFetcher returns the HTML of a gallery page.
// Failures should be *FetchError so the orchestrator can report them.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// ImageFetcher performs a single image GET. Non-2xx responses are
// returned as errors; on success the caller closes the body.
type ImageFetcher interface {
	GetImage(ctx context.Context, imageURL, referer string) (*http.Response, error)
}

// SitePlugin describes how one kind of gallery page is read.
// Sites provide ONLY extraction rules - the downloader handles ALL execution.
type SitePlugin interface {
	// Name returns the site identifier (e.g., "google", "generic")
	Name() string

	// DisplayName is shown in summaries
	DisplayName() string

	// Mode returns the extraction mode this site needs
	Mode() models.Mode

	// Matchers returns the search-mode rules, nil for the defaults
	Matchers() []parser.Matcher

	// Filter returns the search-mode URL filter, nil for the default
	Filter() *parser.URLFilter

	// FilenamePrefix derives the output filename prefix from the page URL
	FilenamePrefix(pageURL string) string
}

// SiteResolver picks the SitePlugin for a page. A non-auto override
// forces the matching mode.
type SiteResolver interface {
	Resolve(pageURL string, override models.Mode) SitePlugin
}

// Recorder receives a metadata record for every saved image.
type Recorder interface {
	Append(records ...models.ImageRecord) (int, error)
}

// ProgressCallback is called after every candidate.
// Parameters: fulfilled slots so far, target count, result of this candidate
type ProgressCallback func(done, total int, result models.DownloadResult)
