package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"datasetscraper/config"
	"datasetscraper/dedup"
	"datasetscraper/downloader"
	"datasetscraper/metadata"
	"datasetscraper/models"
	"datasetscraper/sites"
	"datasetscraper/ui"
	"datasetscraper/validation"
	"datasetscraper/video"
)

func galleryCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "gallery",
		Usage:     "download images from a gallery or search results page",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 20, Usage: "images to collect"},
			&cli.StringFlag{Name: "selector", Aliases: []string{"s"}, Usage: "CSS selector for image elements (generic mode)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(models.ModeAuto), Usage: "auto, generic or search"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "target directory"},
			&cli.StringFlag{Name: "prefix", Usage: "filename prefix (default from the site)"},
			&cli.DurationFlag{Name: "min-delay", Usage: "minimum pause between requests"},
			&cli.DurationFlag{Name: "max-delay", Usage: "maximum pause between requests"},
			&cli.IntFlag{Name: "retries", Usage: "extra attempts per image on network errors"},
			&cli.StringFlag{Name: "backend", Usage: "page fetcher: http, colly or browser"},
			&cli.BoolFlag{Name: "browser-fallback", Usage: "retry failed page fetches in a headless browser"},
			&cli.BoolFlag{Name: "jpeg", Usage: "convert every image to JPEG"},
			&cli.BoolFlag{Name: "no-metadata", Usage: "do not record images in metadata.json"},
			&cli.BoolFlag{Name: "no-progress", Usage: "hide the progress bar"},
		},
		Action: s.gallery,
	}
}

func (s *appState) gallery(c *cli.Context) error {
	cfg := s.cfg
	if c.IsSet("min-delay") {
		cfg.MinDelay = c.Duration("min-delay")
	}
	if c.IsSet("max-delay") {
		cfg.MaxDelay = c.Duration("max-delay")
	}
	if c.IsSet("retries") {
		cfg.DownloadRetries = c.Int("retries")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.Bool("browser-fallback") {
		cfg.BrowserFallback = true
	}
	if c.Bool("jpeg") {
		cfg.ConvertToJPEG = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = cfg.OutputDir
	}
	req := validation.GalleryRequest{
		PageURL:   c.Args().First(),
		Selector:  c.String("selector"),
		Count:     c.Int("count"),
		OutputDir: output,
		Mode:      c.String("mode"),
		Prefix:    c.String("prefix"),
	}
	mode, err := validation.ValidateGalleryRequest(req)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	pages, images, err := downloader.NewFetchers(cfg)
	if err != nil {
		return err
	}

	var recorder downloader.Recorder
	if !c.Bool("no-metadata") {
		recorder = metadata.NewStore(cfg.MetadataPath())
	}

	var progress downloader.ProgressCallback
	var bar *ui.DownloadProgress
	if !c.Bool("no-progress") {
		bar = ui.NewDownloadProgress(c.App.Writer, req.Count)
		progress = bar.Update
	}

	manager, err := downloader.NewManager(downloader.GalleryConfig{
		PageURL:         req.PageURL,
		OutputDir:       req.OutputDir,
		Count:           req.Count,
		Mode:            mode,
		Selector:        req.Selector,
		ExtractMultiple: cfg.ExtractMultiple,
		Download: downloader.DownloadOptions{
			MinDelay:       cfg.MinDelay,
			MaxDelay:       cfg.MaxDelay,
			Retries:        cfg.DownloadRetries,
			RetryBackoff:   time.Second,
			Timeout:        cfg.RequestTimeout,
			FilenamePrefix: req.Prefix,
			ConvertToJPEG:  cfg.ConvertToJPEG,
			SourceKind:     models.SourceGallery,
			Recorder:       recorder,
			Progress:       progress,
		},
	},
		downloader.WithPageFetcher(pages),
		downloader.WithImageFetcher(images),
		downloader.WithSiteResolver(sites.DefaultRegistry()),
	)
	if err != nil {
		return err
	}

	session, runErr := manager.Run(c.Context)
	if bar != nil {
		bar.Finish()
	}
	ui.PrintSession(c.App.Writer, session, req.OutputDir)
	return runErr
}

func videoCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "video",
		Usage:     "download videos and sample frames from them",
		ArgsUsage: "QUERY|URL",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Usage: "videos to fetch for a search query"},
			&cli.Float64Flag{Name: "fps", Usage: "frames sampled per second of video"},
			&cli.StringFlag{Name: "video-dir", Usage: "where videos are kept"},
			&cli.StringFlag{Name: "frames-dir", Usage: "where frames are written"},
			&cli.BoolFlag{Name: "no-metadata", Usage: "do not record frames in metadata.json"},
		},
		Action: s.video,
	}
}

func (s *appState) video(c *cli.Context) error {
	cfg := s.cfg
	if c.IsSet("max") {
		cfg.MaxVideos = c.Int("max")
	}
	if c.IsSet("fps") {
		cfg.FPS = c.Float64("fps")
	}
	if dir := c.String("video-dir"); dir != "" {
		cfg.VideoDir = dir
	}
	if dir := c.String("frames-dir"); dir != "" {
		cfg.FramesDir = dir
	}

	source := c.Args().First()
	if err := validation.ValidateVideoRequest(source, cfg.MaxVideos, cfg.FPS); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	var recorder video.FrameRecorder
	if !c.Bool("no-metadata") {
		recorder = metadata.NewStore(cfg.MetadataPath())
	}

	processor := video.NewProcessor(
		video.NewYtDlp(cfg.YtDlpBin, cfg.VideoDir),
		video.NewFFmpegSampler(cfg.FFmpegBin, cfg.FPS),
		recorder,
		cfg.VideoDir,
		cfg.FramesDir,
	)
	report, err := processor.Run(c.Context, source, cfg.MaxVideos)
	if err != nil {
		return err
	}
	ui.PrintVideoReport(c.App.Writer, report, cfg.FramesDir)
	return nil
}

func summaryCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "print file counts and metadata statistics",
		Action: func(c *cli.Context) error {
			report, err := metadata.NewStore(s.cfg.MetadataPath()).Summary(datasetDirs(s.cfg))
			if err != nil {
				return err
			}
			ui.PrintDatasetReport(c.App.Writer, report)
			return nil
		},
	}
}

func datasetDirs(cfg *config.Config) map[string]string {
	return map[string]string{
		"gallery_images": cfg.OutputDir,
		"videos":         cfg.VideoDir,
		"video_frames":   cfg.FramesDir,
	}
}

func exportCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "export-csv",
		Usage:     "write the metadata as CSV",
		ArgsUsage: "[FILE]",
		Action: func(c *cli.Context) error {
			store := metadata.NewStore(s.cfg.MetadataPath())
			if path := c.Args().First(); path != "" {
				n, err := store.ExportCSVFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Exported %d records to %s\n", n, path)
				return nil
			}
			_, err := store.ExportCSV(c.App.Writer)
			return err
		},
	}
}

func addCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "record images already on disk in the metadata",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "source description stored with every record"},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().First()
			if dir == "" {
				return cli.Exit("a directory is required", 2)
			}
			source := c.String("source")
			if source == "" {
				source = dir
			}
			n, err := metadata.NewStore(s.cfg.MetadataPath()).AddDirectory(dir, models.SourceGallery, source)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Added %d new records from %s\n", n, dir)
			return nil
		},
	}
}

func dedupeCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "dedupe",
		Usage:     "find visually similar images",
		ArgsUsage: "[DIR]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threshold", Usage: "maximum perceptual hash distance (exclusive)"},
			&cli.BoolFlag{Name: "exact", Usage: "group metadata records by content hash instead"},
			&cli.BoolFlag{Name: "delete", Usage: "remove every duplicate but the first of each group"},
		},
		Action: s.dedupe,
	}
}

func (s *appState) dedupe(c *cli.Context) error {
	cfg := s.cfg
	store := metadata.NewStore(cfg.MetadataPath())

	if c.Bool("exact") {
		groups, err := store.FindDuplicates()
		if err != nil {
			return err
		}
		paths := make([][]string, 0, len(groups))
		for _, g := range groups {
			var p []string
			for _, r := range g {
				p = append(p, r.FilePath)
			}
			paths = append(paths, p)
		}
		ui.PrintDuplicateGroups(c.App.Writer, paths)
		return nil
	}

	dir := c.Args().First()
	if dir == "" {
		dir = cfg.Root
	}
	threshold := cfg.DedupThreshold
	if c.IsSet("threshold") {
		threshold = c.Int("threshold")
	}

	groups, err := dedup.Scan(dir, threshold)
	if err != nil {
		return err
	}
	ui.PrintDuplicateGroups(c.App.Writer, groups)

	if !c.Bool("delete") || len(groups) == 0 {
		return nil
	}
	removed, err := dedup.RemoveDuplicates(groups)
	fmt.Fprintf(c.App.Writer, "Removed %d files\n", len(removed))
	if err != nil {
		return err
	}
	if _, err := store.CleanupBroken(); err != nil {
		log.Warnf("[App] Metadata cleanup after dedupe failed: %v", err)
	}
	return nil
}

func cleanupCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "drop metadata entries whose files are gone",
		Action: func(c *cli.Context) error {
			n, err := metadata.NewStore(s.cfg.MetadataPath()).CleanupBroken()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Removed %d broken metadata entries\n", n)
			return nil
		},
	}
}

func sitesCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "sites",
		Usage: "list the sites with dedicated extraction rules",
		Action: func(c *cli.Context) error {
			for _, site := range sites.DefaultRegistry().List() {
				fmt.Fprintf(c.App.Writer, "%-10s %-18s %s mode\n", site.Name, site.DisplayName, site.Mode)
			}
			return nil
		},
	}
}

func logsCommand(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "show the application log",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lines", Aliases: []string{"n"}, Value: 100, Usage: "lines to show"},
			&cli.StringFlag{Name: "grep", Aliases: []string{"g"}, Usage: "only lines containing this text"},
			&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "keep printing new lines"},
		},
		Action: func(c *cli.Context) error {
			path := s.cfg.LogPath()
			if err := ui.ShowLog(c.App.Writer, path, c.Int("lines"), c.String("grep")); err != nil {
				return err
			}
			if c.Bool("follow") {
				return ui.FollowLog(c.Context, c.App.Writer, path, c.String("grep"))
			}
			return nil
		},
	}
}
