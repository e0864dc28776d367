package downloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datasetscraper/models"
	"datasetscraper/parser"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// GalleryConfig holds configuration for one gallery session
type GalleryConfig struct {
	PageURL   string
	OutputDir string
	Count     int
	Mode      models.Mode // auto, generic or search
	Selector  string      // generic mode only

	// ExtractMultiple caps search-mode extraction at Count*ExtractMultiple
	ExtractMultiple int

	Download DownloadOptions
}

// Manager orchestrates one gallery session: fetch, extract, download, summarize
type Manager struct {
	config  GalleryConfig
	fetcher PageFetcher
	images  ImageFetcher
	sites   SiteResolver
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

func WithPageFetcher(f PageFetcher) ManagerOption {
	return func(m *Manager) { m.fetcher = f }
}

func WithImageFetcher(f ImageFetcher) ManagerOption {
	return func(m *Manager) { m.images = f }
}

func WithSiteResolver(r SiteResolver) ManagerOption {
	return func(m *Manager) { m.sites = r }
}

// NewManager creates a new gallery manager. With no fetchers given a
// plain HTTPClient serves both pages and images.
func NewManager(config GalleryConfig, opts ...ManagerOption) (*Manager, error) {
	if config.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", config.Count)
	}
	if config.ExtractMultiple <= 0 {
		config.ExtractMultiple = 3
	}
	if config.Mode == "" {
		config.Mode = models.ModeAuto
	}

	m := &Manager{config: config}
	for _, opt := range opts {
		opt(m)
	}

	if m.fetcher == nil || m.images == nil {
		client, err := NewHTTPClient(WithTimeout(config.Download.Timeout))
		if err != nil {
			return nil, err
		}
		if m.fetcher == nil {
			m.fetcher = client
		}
		if m.images == nil {
			m.images = client
		}
	}
	if m.sites == nil {
		m.sites = fallbackResolver{}
	}
	return m, nil
}

// Run executes the full gallery workflow. A session is always returned;
// when the page cannot be fetched it carries FatalFetch and the *FetchError
// is returned alongside it.
func (m *Manager) Run(ctx context.Context) (*models.GallerySession, error) {
	cfg := m.config
	session := &models.GallerySession{
		ID:        uuid.NewString(),
		SourceURL: cfg.PageURL,
		Mode:      cfg.Mode,
		Selector:  cfg.Selector,
		Requested: cfg.Count,
		Started:   time.Now(),
	}
	defer func() { session.Elapsed = time.Since(session.Started) }()

	log.Infof("[Gallery] Session %s: %s (want %d)", session.ID, cfg.PageURL, cfg.Count)

	// Step 1: Fetch the page
	page, err := m.fetcher.FetchPage(ctx, cfg.PageURL)
	if err != nil {
		fe := asFetchError(cfg.PageURL, err)
		log.Errorf("[Gallery] Failed to fetch page: %v", fe)
		session.FatalFetch = true
		session.FetchErr = fe
		session.StopReason = models.StopFetchFailed
		return session, fe
	}

	// Step 2: Pick the site rules
	override := cfg.Mode
	if override == models.ModeAuto && strings.TrimSpace(cfg.Selector) != "" {
		// An explicit selector only means something in generic mode
		override = models.ModeGeneric
	}
	site := m.sites.Resolve(cfg.PageURL, override)
	session.Site = site.DisplayName()
	session.Mode = site.Mode()
	log.Infof("[Gallery] Using %s rules (mode=%s)", site.DisplayName(), site.Mode())

	// Step 3: Extract
	opts := parser.ExtractOptions{
		Mode:     site.Mode(),
		Matchers: site.Matchers(),
		Filter:   site.Filter(),
		Seen:     models.NewSeenSet(), // fresh per session
	}
	if site.Mode() == models.ModeSearch {
		opts.Limit = cfg.Count * cfg.ExtractMultiple
	} else {
		opts.Selector = cfg.Selector
	}
	candidates := parser.Extract(page, cfg.PageURL, opts)
	session.Candidates = len(candidates)

	if len(candidates) == 0 {
		log.Warnf("[Gallery] No image candidates found on %s", cfg.PageURL)
		session.StopReason = models.StopNoCandidates
		return session, nil
	}

	// Step 4: Download
	dlOpts := cfg.Download
	if dlOpts.FilenamePrefix == "" {
		dlOpts.FilenamePrefix = site.FilenamePrefix(cfg.PageURL)
	}
	if dlOpts.SourceID == "" {
		dlOpts.SourceID = cfg.PageURL
	}
	if dlOpts.Referer == "" {
		dlOpts.Referer = cfg.PageURL
	}

	downloader := NewDownloader(m.images, dlOpts)
	session.Results = downloader.Download(ctx, candidates, cfg.OutputDir, cfg.Count)
	session.Tally()

	// Step 5: Summarize
	switch {
	case session.Fulfilled() >= cfg.Count:
		session.StopReason = models.StopTargetReached
	case ctx.Err() != nil:
		session.StopReason = models.StopCancelled
	default:
		session.StopReason = models.StopCandidatesExhausted
	}

	log.Infof("[Gallery] Session %s finished: %d succeeded, %d failed, %d attempted (%s)",
		session.ID, session.Succeeded, session.Failed, session.Attempted, session.StopReason)

	if session.StopReason == models.StopCancelled {
		return session, ctx.Err()
	}
	return session, nil
}

// fallbackResolver is used when no site registry is wired in
type fallbackResolver struct{}

func (fallbackResolver) Resolve(pageURL string, override models.Mode) SitePlugin {
	if override == models.ModeSearch {
		return fallbackSite{mode: models.ModeSearch}
	}
	return fallbackSite{mode: models.ModeGeneric}
}

type fallbackSite struct {
	mode models.Mode
}

func (s fallbackSite) Name() string { return string(s.mode) }
func (s fallbackSite) DisplayName() string { return "Generic gallery" }
func (s fallbackSite) Mode() models.Mode { return s.mode }
func (s fallbackSite) Matchers() []parser.Matcher { return nil }
func (s fallbackSite) Filter() *parser.URLFilter { return nil }
func (s fallbackSite) FilenamePrefix(pageURL string) string { return DefaultFilenamePrefix }
