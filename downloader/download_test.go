package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"datasetscraper/models"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: 10, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// imageServer serves /img/* as PNG, /html/* as HTML, /missing as 404
// and /page with whatever page body is set.
type imageServer struct {
	*httptest.Server
	hits atomic.Int32
	page string

	mu      sync.Mutex
	headers []http.Header
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	img := testPNG(t, 120)
	mux := http.NewServeMux()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})
	mux.HandleFunc("/webp/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("RIFF\x00\x00\x00\x00WEBPVP8 fake"))
	})
	mux.HandleFunc("/odd/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "image/x-something")
		w.Write([]byte("opaque image bytes"))
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>not an image</html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/truncated", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "5000")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(s.page))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) candidates(paths ...string) []models.CandidateURL {
	out := make([]models.CandidateURL, 0, len(paths))
	for _, p := range paths {
		out = append(out, models.CandidateURL{Raw: p, Resolved: s.URL + p, Pattern: "test"})
	}
	return out
}

func newTestDownloader(t *testing.T, opts DownloadOptions) *Downloader {
	t.Helper()
	client, err := NewHTTPClient(WithTimeout(5 * time.Second))
	require.NoError(t, err)
	return NewDownloader(client, opts)
}

func outcomes(results []models.DownloadResult) []models.Outcome {
	out := make([]models.Outcome, 0, len(results))
	for _, r := range results {
		out = append(out, r.Outcome)
	}
	return out
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownload_StopsAtTargetCount(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/img/1", "/img/2", "/img/3", "/img/4", "/img/5"), dir, 3)

	assert.Equal(t, []models.Outcome{models.Success, models.Success, models.Success}, outcomes(results))
	assert.Equal(t, int32(3), srv.hits.Load())
	assert.Equal(t, []string{"gallery_image_0001.png", "gallery_image_0002.png", "gallery_image_0003.png"}, dirNames(t, dir))
}

func TestDownload_FewerCandidatesThanRequested(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/img/a", "/img/b", "/img/c"), dir, 5)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, models.Success, r.Outcome)
	}
	assert.Len(t, dirNames(t, dir), 3)
}

func TestDownload_EveryOtherCandidateNotImage(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{})

	cands := srv.candidates("/img/1", "/html/2", "/img/3", "/html/4", "/img/5", "/html/6", "/img/7")
	results := d.Download(context.Background(), cands, dir, 3)

	assert.Equal(t, []models.Outcome{
		models.Success, models.SkippedNotImage,
		models.Success, models.SkippedNotImage,
		models.Success,
	}, outcomes(results))
	assert.Equal(t, []string{"gallery_image_0001.png", "gallery_image_0003.png", "gallery_image_0005.png"}, dirNames(t, dir))
}

func TestDownload_RerunOnlySkipsDuplicates(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	cands := srv.candidates("/img/1", "/img/2", "/img/3", "/img/4")

	first := newTestDownloader(t, DownloadOptions{}).Download(context.Background(), cands, dir, 3)
	require.Len(t, first, 3)
	hitsAfterFirst := srv.hits.Load()

	second := newTestDownloader(t, DownloadOptions{}).Download(context.Background(), cands, dir, 3)

	assert.Equal(t, []models.Outcome{models.SkippedDuplicate, models.SkippedDuplicate, models.SkippedDuplicate}, outcomes(second))
	assert.Equal(t, hitsAfterFirst, srv.hits.Load(), "rerun must not touch the network")
	assert.Equal(t, filepath.Join(dir, "gallery_image_0002.png"), second[1].Path)
	assert.Len(t, dirNames(t, dir), 3)
}

func TestDownload_NetworkErrorDoesNotStopSession(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/missing", "/img/2"), dir, 2)

	require.Len(t, results, 2)
	assert.Equal(t, models.NetworkError, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ErrUnexpectedStatus)
	assert.Equal(t, models.Success, results[1].Outcome)
	assert.Equal(t, []string{"gallery_image_0002.png"}, dirNames(t, dir))
}

func TestDownload_TruncatedBodyLeavesNoTempFile(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/truncated"), dir, 1)

	require.Len(t, results, 1)
	assert.Equal(t, models.NetworkError, results[0].Outcome)
	assert.Empty(t, dirNames(t, dir))
}

func TestDownload_WriteErrorWhenTargetIsAFile(t *testing.T) {
	srv := newImageServer(t)
	target := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/img/1", "/img/2"), target, 2)

	assert.Equal(t, []models.Outcome{models.WriteError, models.WriteError}, outcomes(results))
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestDownload_UnwritableTargetLoggedOnce(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	srv := newImageServer(t)
	target := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	d := newTestDownloader(t, DownloadOptions{})

	d.Download(context.Background(), srv.candidates("/img/1", "/img/2", "/img/3"), target, 3)

	var errs []*log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.ErrorLevel {
			errs = append(errs, e)
		}
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "3 candidate(s) will fail as write-error")
}

func TestDownload_RerunWithGlobCharsInPath(t *testing.T) {
	srv := newImageServer(t)
	dir := filepath.Join(t.TempDir(), "set[a]*")
	cands := srv.candidates("/img/1", "/img/2")
	opts := DownloadOptions{FilenamePrefix: "cats[1]?"}

	first := newTestDownloader(t, opts).Download(context.Background(), cands, dir, 2)
	require.Equal(t, []models.Outcome{models.Success, models.Success}, outcomes(first))
	hits := srv.hits.Load()

	second := newTestDownloader(t, opts).Download(context.Background(), cands, dir, 2)

	assert.Equal(t, []models.Outcome{models.SkippedDuplicate, models.SkippedDuplicate}, outcomes(second))
	assert.Equal(t, filepath.Join(dir, "cats[1]?_0001.png"), second[0].Path)
	assert.Equal(t, hits, srv.hits.Load(), "existing files are found before any request")
}

func TestDownload_DelayBetweenRequestsOnly(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gallery_image_0001.jpg"), []byte("old"), 0644))

	d := newTestDownloader(t, DownloadOptions{MinDelay: time.Hour, MaxDelay: time.Hour})
	waits := 0
	d.wait = func(ctx context.Context) error {
		waits++
		return nil
	}

	results := d.Download(context.Background(), srv.candidates("/img/1", "/img/2", "/img/3", "/img/4"), dir, 3)

	assert.Equal(t, []models.Outcome{models.SkippedDuplicate, models.Success, models.Success}, outcomes(results))
	// two requests, one pause between them, none after the last
	assert.Equal(t, 1, waits)
}

func TestDownload_RetriesNetworkErrors(t *testing.T) {
	var calls atomic.Int32
	img := testPNG(t, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	d := newTestDownloader(t, DownloadOptions{Retries: 2, RetryBackoff: time.Second})
	var backoffs []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		backoffs = append(backoffs, dur)
		return nil
	}

	results := d.Download(context.Background(), []models.CandidateURL{{Resolved: srv.URL + "/x.png"}}, t.TempDir(), 1)

	require.Len(t, results, 1)
	assert.Equal(t, models.Success, results[0].Outcome)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, backoffs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_ExtensionFromContentType(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{FilenamePrefix: "cats"})

	results := d.Download(context.Background(), srv.candidates("/webp/photo.jpg", "/odd/view"), dir, 2)

	require.Len(t, results, 2)
	assert.Equal(t, ".webp", results[0].Extension)
	assert.Equal(t, ".jpg", results[1].Extension)
	assert.Equal(t, []string{"cats_0001.webp", "cats_0002.jpg"}, dirNames(t, dir))
}

func TestDownload_ConvertToJPEG(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := newTestDownloader(t, DownloadOptions{ConvertToJPEG: true})

	results := d.Download(context.Background(), srv.candidates("/img/1"), dir, 1)

	require.Len(t, results, 1)
	require.Equal(t, models.Success, results[0].Outcome)
	assert.Equal(t, ".jpg", results[0].Extension)
	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data[:3])
}

func TestDownload_RepeatedURLSkipped(t *testing.T) {
	srv := newImageServer(t)
	d := newTestDownloader(t, DownloadOptions{})

	results := d.Download(context.Background(), srv.candidates("/img/1", "/img/1", "/img/2"), t.TempDir(), 2)

	assert.Equal(t, []models.Outcome{models.Success, models.SkippedDuplicate, models.Success}, outcomes(results))
	assert.Empty(t, results[1].Path)
	assert.Equal(t, int32(2), srv.hits.Load())
}

type memRecorder struct {
	records []models.ImageRecord
}

func (m *memRecorder) Append(records ...models.ImageRecord) (int, error) {
	m.records = append(m.records, records...)
	return len(records), nil
}

func TestDownload_RecordsMetadataAndProgress(t *testing.T) {
	srv := newImageServer(t)
	rec := &memRecorder{}
	var ticks []string
	d := newTestDownloader(t, DownloadOptions{
		Recorder: rec,
		SourceID: "https://gallery.example.com/cats",
		Referer:  "https://gallery.example.com/cats",
		Progress: func(done, total int, r models.DownloadResult) {
			ticks = append(ticks, fmt.Sprintf("%d/%d %s", done, total, r.Outcome))
		},
	})

	results := d.Download(context.Background(), srv.candidates("/html/0", "/img/1"), t.TempDir(), 1)

	require.Len(t, results, 2)
	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, "gallery_image_0002.png", got.Filename)
	assert.Equal(t, models.SourceGallery, got.SourceType)
	assert.Equal(t, "https://gallery.example.com/cats", got.SourceInfo)

	sum := sha256.Sum256(testPNG(t, 120))
	assert.Equal(t, hex.EncodeToString(sum[:]), got.FileHash)
	assert.Equal(t, []string{"0/1 skipped-not-image", "1/1 success"}, ticks)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.headers, 1)
	assert.Equal(t, "https://gallery.example.com/cats", srv.headers[0].Get("Referer"))
	assert.True(t, strings.HasPrefix(srv.headers[0].Get("User-Agent"), "Mozilla/5.0"))
	assert.Contains(t, srv.headers[0].Get("Accept"), "image/")
}

func TestDownload_CancelledContext(t *testing.T) {
	srv := newImageServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestDownloader(t, DownloadOptions{}).Download(ctx, srv.candidates("/img/1"), t.TempDir(), 1)

	assert.Empty(t, results)
	assert.Equal(t, int32(0), srv.hits.Load())
}
