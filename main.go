package main

// Package layout:
// - models/     : Shared data types (sessions, outcomes, records)
// - config/     : Environment configuration, logging, version info
// - parser/     : Image URL extraction, extension rules, rate limiting
// - cf/         : Challenge detection and response decompression
// - downloader/ : Page fetchers, image downloader, gallery manager
// - sites/      : Site registry (generic galleries, search engines)
// - metadata/   : Dataset metadata store, CSV export, summaries
// - video/      : yt-dlp acquisition and ffmpeg frame sampling
// - dedup/      : Perceptual duplicate detection
// - validation/ : Request checks shared by commands
// - ui/         : Terminal progress, reports and log viewer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"datasetscraper/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Errorf("[App] %v", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Configuration is loaded once in Before
// and shared by every command.
func newApp() *cli.App {
	state := &appState{}

	return &cli.App{
		Name:    "datasetscraper",
		Usage:   "collect image datasets from galleries, search results and videos",
		Version: config.VersionString(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "dataset root directory"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "no-log-file", Usage: "log to the terminal only"},
		},
		Before: state.setup,
		After:  state.teardown,
		Commands: []*cli.Command{
			galleryCommand(state),
			videoCommand(state),
			summaryCommand(state),
			exportCommand(state),
			dedupeCommand(state),
			addCommand(state),
			cleanupCommand(state),
			sitesCommand(state),
			logsCommand(state),
		},
	}
}

type appState struct {
	cfg     *config.Config
	logFile io.Closer
}

func (s *appState) setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if root := c.String("root"); root != "" {
		cfg.Root = root
		cfg.OutputDir = filepath.Join(root, "gallery_images")
		cfg.VideoDir = filepath.Join(root, "videos")
		cfg.FramesDir = filepath.Join(root, "video_frames")
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if c.Bool("no-log-file") {
		cfg.LogToFile = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closer, err := config.SetupLogging(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.logFile = closer

	log.Debugf("[App] datasetscraper %s", config.VersionString())
	return nil
}

func (s *appState) teardown(c *cli.Context) error {
	if s.logFile != nil {
		return s.logFile.Close()
	}
	return nil
}
