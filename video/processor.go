package video

import (
	"context"
	"path/filepath"

	"datasetscraper/models"

	log "github.com/sirupsen/logrus"
)

// FrameRecorder stores metadata for sampled frames
type FrameRecorder interface {
	AddFiles(paths []string, kind models.SourceKind, sourceInfo string) (int, error)
}

// Report summarizes one video run
type Report struct {
	Downloaded int // new videos from this run
	Processed  int
	Skipped    int // frames already present
	Failed     int
	Frames     int
	Recorded   int
}

// Processor downloads videos and samples frames from every video in the
// download directory that has no frames yet.
type Processor struct {
	acquirer  Acquirer
	sampler   FrameSampler
	recorder  FrameRecorder
	videoDir  string
	framesDir string
}

func NewProcessor(acquirer Acquirer, sampler FrameSampler, recorder FrameRecorder, videoDir, framesDir string) *Processor {
	return &Processor{
		acquirer:  acquirer,
		sampler:   sampler,
		recorder:  recorder,
		videoDir:  videoDir,
		framesDir: framesDir,
	}
}

// Run acquires up to max videos for source, then samples. A failed
// download is returned as an error; a failed video is counted and skipped.
func (p *Processor) Run(ctx context.Context, source string, max int) (*Report, error) {
	added, err := p.acquirer.Acquire(ctx, source, max)
	if err != nil {
		return nil, err
	}
	report := &Report{Downloaded: len(added)}

	for _, v := range ExistingVideos(p.videoDir) {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		name := filepath.Base(v)

		if p.sampler.IsProcessed(v, p.framesDir) {
			log.Debugf("[Video] Already processed: %s", name)
			report.Skipped++
			continue
		}

		frames, err := p.sampler.Sample(ctx, v, p.framesDir)
		if err != nil {
			log.Errorf("[Video] Failed to sample %s: %v", name, err)
			report.Failed++
			continue
		}
		report.Processed++
		report.Frames += len(frames)

		if p.recorder != nil {
			n, err := p.recorder.AddFiles(frames, models.SourceFrame, v)
			if err != nil {
				log.Warnf("[Video] Failed to record frames of %s: %v", name, err)
			}
			report.Recorded += n
		}
	}

	log.Infof("[Video] %d downloaded, %d processed, %d skipped, %d failed, %d frame(s)",
		report.Downloaded, report.Processed, report.Skipped, report.Failed, report.Frames)
	return report, nil
}
