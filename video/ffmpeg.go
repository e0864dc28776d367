package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// FFmpegSampler extracts frames at a fixed rate with ffmpeg
type FFmpegSampler struct {
	bin string
	fps float64
	run Runner
}

var _ FrameSampler = (*FFmpegSampler)(nil)

func NewFFmpegSampler(bin string, fps float64) *FFmpegSampler {
	if bin == "" {
		bin = "ffmpeg"
	}
	if fps <= 0 {
		fps = 1
	}
	return &FFmpegSampler{bin: bin, fps: fps, run: execRunner}
}

func framePrefix(videoPath string) string {
	return CleanName(baseName(videoPath)) + "_frame_"
}

// Args builds the ffmpeg command line writing <clean>_frame_%06d.jpg
func (s *FFmpegSampler) Args(videoPath, outDir string) []string {
	pattern := filepath.Join(outDir, framePrefix(videoPath)+"%06d.jpg")
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", "fps=" + strconv.FormatFloat(s.fps, 'f', -1, 64),
		"-q:v", "2",
		"-y",
		pattern,
	}
}

// existingFrames lists frames already extracted for videoPath
func existingFrames(videoPath, outDir string) []string {
	frames, _ := filepath.Glob(filepath.Join(outDir, framePrefix(videoPath)+"*.jpg"))
	sort.Strings(frames)
	return frames
}

// IsProcessed reports whether outDir already holds frames of videoPath
func (s *FFmpegSampler) IsProcessed(videoPath, outDir string) bool {
	return len(existingFrames(videoPath, outDir)) > 0
}

// Sample extracts frames of videoPath into outDir and returns them sorted
func (s *FFmpegSampler) Sample(ctx context.Context, videoPath, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory %s: %w", outDir, err)
	}

	log.Infof("[Video] Sampling %s at %v fps", filepath.Base(videoPath), s.fps)
	output, err := s.run(ctx, s.bin, s.Args(videoPath, outDir)...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	frames := existingFrames(videoPath, outDir)
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from video %s", videoPath)
	}
	log.Infof("[Video] %d frame(s) from %s", len(frames), filepath.Base(videoPath))
	return frames, nil
}
