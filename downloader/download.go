package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"datasetscraper/models"
	"datasetscraper/parser"

	log "github.com/sirupsen/logrus"
)

// DefaultFilenamePrefix names files when the site has nothing better
const DefaultFilenamePrefix = "gallery_image"

// DownloadOptions holds the per-session download policy
type DownloadOptions struct {
	MinDelay       time.Duration // random pause before every request but the first
	MaxDelay       time.Duration
	Retries        int           // extra attempts per candidate on network errors
	RetryBackoff   time.Duration // base for exponential backoff between retries
	Timeout        time.Duration // per image, request and body
	FilenamePrefix string
	ConvertToJPEG  bool
	Referer        string

	SourceKind models.SourceKind
	SourceID   string // recorded with every saved image, usually the page URL

	Recorder Recorder
	Progress ProgressCallback
}

// Downloader fetches candidates one at a time into a target directory.
type Downloader struct {
	client  ImageFetcher
	opts    DownloadOptions
	limiter *parser.RateLimiter
	seen    *models.SeenSet

	// swapped in tests
	wait  func(ctx context.Context) error
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewDownloader(client ImageFetcher, opts DownloadOptions) *Downloader {
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = DefaultFilenamePrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.SourceKind == "" {
		opts.SourceKind = models.SourceGallery
	}
	d := &Downloader{
		client:  client,
		opts:    opts,
		limiter: parser.NewRateLimiter(opts.MinDelay, opts.MaxDelay),
		seen:    models.NewSeenSet(),
		sleep:   sleepCtx,
		now:     time.Now,
	}
	d.wait = d.limiter.Wait
	return d
}

// Download walks candidates in order until targetCount files exist for
// this session or the candidates run out. One result per candidate considered.
func (d *Downloader) Download(ctx context.Context, candidates []models.CandidateURL, targetDir string, targetCount int) []models.DownloadResult {
	results := make([]models.DownloadResult, 0, len(candidates))

	dirErr := os.MkdirAll(targetDir, 0755)
	if dirErr != nil {
		log.Errorf("[Downloader] Cannot create %s, %d candidate(s) will fail as %s: %v",
			targetDir, len(candidates), models.WriteError, dirErr)
	}

	fulfilled := 0
	requests := 0

	for i, c := range candidates {
		if fulfilled >= targetCount {
			break
		}
		if ctx.Err() != nil {
			log.Warnf("[Downloader] Cancelled after %d candidate(s)", len(results))
			break
		}

		base := fmt.Sprintf("%s_%04d", d.opts.FilenamePrefix, i+1)
		var res models.DownloadResult

		existing := ""
		if dirErr == nil {
			existing = existingFile(targetDir, base)
		}

		switch {
		case dirErr != nil:
			res = models.DownloadResult{URL: c.Resolved, Outcome: models.WriteError, Err: dirErr}
		case existing != "":
			// Saved by an earlier run; no request needed
			res = models.DownloadResult{URL: c.Resolved, Path: existing, Extension: filepath.Ext(existing), Outcome: models.SkippedDuplicate}
			d.seen.Add(c.Resolved)
			log.Infof("[Downloader] [%d] Already present: %s", i+1, filepath.Base(existing))
		case !d.seen.Add(c.Resolved):
			res = models.DownloadResult{URL: c.Resolved, Outcome: models.SkippedDuplicate}
			log.Debugf("[Downloader] [%d] URL already handled this session: %s", i+1, c.Resolved)
		default:
			if requests > 0 {
				if err := d.wait(ctx); err != nil {
					log.Warnf("[Downloader] Cancelled while waiting: %v", err)
					return results
				}
			}
			requests++
			res = d.fetchWithRetry(ctx, c, targetDir, base, i+1)
		}

		if res.Outcome == models.Success || (res.Outcome == models.SkippedDuplicate && res.Path != "") {
			fulfilled++
		}
		if res.Outcome == models.Success {
			d.record(res)
		}

		results = append(results, res)
		if d.opts.Progress != nil {
			d.opts.Progress(fulfilled, targetCount, res)
		}
	}

	log.Infof("[Downloader] Done: %d/%d slot(s) filled from %d candidate(s), %d request(s)",
		fulfilled, targetCount, len(results), requests)
	return results
}

func (d *Downloader) fetchWithRetry(ctx context.Context, c models.CandidateURL, targetDir, base string, ordinal int) models.DownloadResult {
	var res models.DownloadResult
	for attempt := 0; attempt <= d.opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * d.opts.RetryBackoff
			log.Infof("[Downloader] [%d] Retry %d/%d in %v", ordinal, attempt, d.opts.Retries, backoff)
			if err := d.sleep(ctx, backoff); err != nil {
				return res
			}
		}

		res = d.fetchOne(ctx, c, targetDir, base)
		if res.Outcome != models.NetworkError {
			break
		}
	}

	switch res.Outcome {
	case models.Success:
		log.Infof("[Downloader] [%d] ✓ %s (%d bytes)", ordinal, filepath.Base(res.Path), res.Size)
	case models.SkippedNotImage:
		log.Infof("[Downloader] [%d] Not an image: %s (%v)", ordinal, c.Resolved, res.Err)
	case models.SkippedDuplicate:
		log.Infof("[Downloader] [%d] Already present: %s", ordinal, filepath.Base(res.Path))
	default:
		log.Warnf("[Downloader] [%d] %s: %s: %v", ordinal, res.Outcome, c.Resolved, res.Err)
	}
	return res
}

// fetchOne downloads one candidate into <base><ext> through a temp file.
func (d *Downloader) fetchOne(ctx context.Context, c models.CandidateURL, targetDir, base string) models.DownloadResult {
	res := models.DownloadResult{URL: c.Resolved}

	reqCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	resp, err := d.client.GetImage(reqCtx, c.Resolved, d.opts.Referer)
	if err != nil {
		res.Outcome, res.Err = models.NetworkError, err
		return res
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !parser.IsImageContentType(contentType) {
		res.Outcome, res.Err = models.SkippedNotImage, fmt.Errorf("content type %q", contentType)
		return res
	}

	ext := parser.ExtensionFor(contentType, c.Resolved)
	body := io.Reader(resp.Body)

	if d.opts.ConvertToJPEG && ext != ".jpg" {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			res.Outcome, res.Err = models.NetworkError, err
			return res
		}
		body = bytes.NewReader(data)
		var converted bytes.Buffer
		if err := parser.ConvertImageToJPEG(data, &converted); err != nil {
			log.Debugf("[Downloader] Keeping %s as %s: %v", c.Resolved, ext, err)
		} else {
			ext = ".jpg"
			body = &converted
		}
	}

	finalPath := filepath.Join(targetDir, base+ext)
	if _, err := os.Stat(finalPath); err == nil {
		res.Outcome, res.Path, res.Extension = models.SkippedDuplicate, finalPath, ext
		return res
	}

	tmp, err := os.CreateTemp(targetDir, "."+base+"-*.part")
	if err != nil {
		res.Outcome, res.Err = models.WriteError, err
		return res
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	hasher := sha256.New()
	w := &trackingWriter{w: io.MultiWriter(tmp, hasher)}
	n, err := io.Copy(w, body)
	if err != nil {
		cleanup()
		if w.err != nil {
			res.Outcome, res.Err = models.WriteError, w.err
		} else {
			res.Outcome, res.Err = models.NetworkError, err
		}
		return res
	}
	if n == 0 {
		cleanup()
		res.Outcome, res.Err = models.NetworkError, errors.New("empty response body")
		return res
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		res.Outcome, res.Err = models.WriteError, err
		return res
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		res.Outcome, res.Err = models.WriteError, err
		return res
	}

	res.Outcome = models.Success
	res.Path = finalPath
	res.Size = n
	res.Extension = ext
	res.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	return res
}

// record passes a saved file to the metadata recorder
func (d *Downloader) record(res models.DownloadResult) {
	if d.opts.Recorder == nil {
		return
	}
	now := d.now()
	rec := models.ImageRecord{
		Filename:       filepath.Base(res.Path),
		FilePath:       res.Path,
		SourceType:     d.opts.SourceKind,
		SourceInfo:     d.opts.SourceID,
		FileSize:       res.Size,
		CreatedTime:    now,
		ModifiedTime:   now,
		FileHash:       res.SHA256,
		AddedToDataset: now,
	}
	if rec.SourceInfo == "" {
		rec.SourceInfo = res.URL
	}
	if _, err := d.opts.Recorder.Append(rec); err != nil {
		log.Warnf("[Downloader] Failed to record metadata for %s: %v", rec.Filename, err)
	}
}

// existingFile returns a file already saved for this ordinal, with any image extension
func existingFile(dir, base string) string {
	matches, err := filepath.Glob(globEscape(filepath.Join(dir, base)) + ".*")
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if parser.IsImageExt(filepath.Ext(m)) {
			return m
		}
	}
	return ""
}

// globEscape quotes the Glob metacharacters in a literal path
func globEscape(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch {
		case r == '*' || r == '?' || r == '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		case r == '\\' && runtime.GOOS != "windows":
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
