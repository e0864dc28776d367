package ui

import (
	"fmt"
	"io"

	"datasetscraper/models"

	"github.com/schollz/progressbar/v3"
)

// DownloadProgress draws a terminal bar for one gallery session
type DownloadProgress struct {
	bar *progressbar.ProgressBar
}

// NewDownloadProgress creates a bar counting filled slots up to target
func NewDownloadProgress(w io.Writer, target int) *DownloadProgress {
	bar := progressbar.NewOptions(target,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Downloading..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(0),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
	return &DownloadProgress{bar: bar}
}

// Update is a downloader progress callback
func (p *DownloadProgress) Update(done, total int, result models.DownloadResult) {
	switch {
	case result.Outcome == models.Success:
		p.bar.Describe("Downloading...")
	case result.Outcome.Failed():
		p.bar.Describe(fmt.Sprintf("Downloading... (last: %s)", result.Outcome))
	}
	_ = p.bar.Set(done)
}

// Finish completes the bar even when the target was not reached
func (p *DownloadProgress) Finish() {
	_ = p.bar.Finish()
}
