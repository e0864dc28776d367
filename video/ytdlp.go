package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// YtDlp downloads videos with the yt-dlp command line tool
type YtDlp struct {
	bin string
	dir string
	run Runner
}

var _ Acquirer = (*YtDlp)(nil)

func NewYtDlp(bin, dir string) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{bin: bin, dir: dir, run: execRunner}
}

// Args builds the yt-dlp command line. Anything that is not an http(s) URL
// is a search: the first max results of "ytsearchN:<query>".
func (y *YtDlp) Args(source string, max int) []string {
	target := source
	if !isURL(source) {
		if max < 1 {
			max = 1
		}
		target = fmt.Sprintf("ytsearch%d:%s", max, source)
	}
	return []string{
		"--format", "best",
		"--output", filepath.Join(y.dir, "%(title)s.%(ext)s"),
		"--no-overwrites",
		"--ignore-errors",
		"--no-progress",
		"--no-warnings",
		target,
	}
}

// Acquire runs yt-dlp and returns the video files that appeared in the
// download directory. Videos already there are left alone by yt-dlp and
// are not returned.
func (y *YtDlp) Acquire(ctx context.Context, source string, max int) ([]string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty video query")
	}
	if err := os.MkdirAll(y.dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory %s: %w", y.dir, err)
	}

	before := make(map[string]bool)
	for _, v := range ExistingVideos(y.dir) {
		before[v] = true
	}

	log.Infof("[Video] yt-dlp: %s", source)
	output, runErr := y.run(ctx, y.bin, y.Args(source, max)...)

	var added []string
	for _, v := range ExistingVideos(y.dir) {
		if !before[v] {
			added = append(added, v)
		}
	}

	if runErr != nil {
		if len(added) == 0 {
			return nil, fmt.Errorf("yt-dlp error: %w, output: %s", runErr, strings.TrimSpace(string(output)))
		}
		// --ignore-errors: some items failed, the rest are usable
		log.Warnf("[Video] yt-dlp reported errors, %d video(s) still downloaded: %v", len(added), runErr)
	}

	log.Infof("[Video] %d new video(s) in %s", len(added), y.dir)
	return added, nil
}
