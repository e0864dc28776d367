package video

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Runner runs an external tool and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Acquirer fetches videos for a search query or URL into a directory and
// returns the files it added
type Acquirer interface {
	Acquire(ctx context.Context, source string, max int) ([]string, error)
}

// FrameSampler turns one video into still frames
type FrameSampler interface {
	Sample(ctx context.Context, videoPath, outDir string) ([]string, error)
	IsProcessed(videoPath, outDir string) bool
}

var videoExts = map[string]bool{".mp4": true, ".webm": true, ".mkv": true}

// ExistingVideos lists video files directly inside dir, sorted
func ExistingVideos(dir string) []string {
	var out []string
	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	for _, m := range matches {
		if videoExts[strings.ToLower(filepath.Ext(m))] {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// CleanName makes a video title safe as a frame filename prefix: letters,
// digits, '-' and '_' are kept, spaces become '_', the rest is dropped.
func CleanName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	clean := strings.TrimRight(b.String(), "_")
	if clean == "" {
		return "video"
	}
	return clean
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
