package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"datasetscraper/parser"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every variable name below
const EnvPrefix = "DATASET_"

// Page fetch backends
const (
	BackendHTTP    = "http"
	BackendColly   = "colly"
	BackendBrowser = "browser"
)

type Config struct {
	Root      string `env:"ROOT"        envDefault:"dataset"`
	OutputDir string `env:"OUTPUT_DIR"  envDefault:"dataset/gallery_images"`
	VideoDir  string `env:"VIDEO_DIR"   envDefault:"dataset/videos"`
	FramesDir string `env:"FRAMES_DIR"  envDefault:"dataset/video_frames"`
	ConfigDir string `env:"CONFIG_DIR"  envDefault:"~/.config/datasetscraper"`
	Metadata  string `env:"METADATA"    envDefault:""`
	LogLevel  string `env:"LOG_LEVEL"   envDefault:"info"`
	LogToFile bool   `env:"LOG_TO_FILE" envDefault:"true"`

	MinDelay        time.Duration `env:"MIN_DELAY"        envDefault:"1s"`
	MaxDelay        time.Duration `env:"MAX_DELAY"        envDefault:"3s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"30s"`
	PageRetries     int           `env:"PAGE_RETRIES"     envDefault:"2"`
	DownloadRetries int           `env:"DOWNLOAD_RETRIES" envDefault:"0"`
	ExtractMultiple int           `env:"EXTRACT_MULTIPLE" envDefault:"3"`
	ConvertToJPEG   bool          `env:"CONVERT_TO_JPEG"  envDefault:"false"`

	UserAgent       string `env:"USER_AGENT"       envDefault:""`
	AcceptLanguage  string `env:"ACCEPT_LANGUAGE"  envDefault:"en-US,en;q=0.9"`
	Backend         string `env:"BACKEND"          envDefault:"http"`
	BrowserFallback bool   `env:"BROWSER_FALLBACK" envDefault:"false"`
	WaitSelector    string `env:"WAIT_SELECTOR"    envDefault:"img"`
	OpenChallenge   bool   `env:"OPEN_CHALLENGE"   envDefault:"false"`
	DebugSaveHTML   string `env:"DEBUG_SAVE_HTML"  envDefault:""`

	YtDlpBin       string  `env:"YTDLP_BIN"       envDefault:"yt-dlp"`
	FFmpegBin      string  `env:"FFMPEG_BIN"      envDefault:"ffmpeg"`
	FPS            float64 `env:"FPS"             envDefault:"1"`
	MaxVideos      int     `env:"MAX_VIDEOS"      envDefault:"5"`
	DedupThreshold int     `env:"DEDUP_THRESHOLD" envDefault:"10"`
}

// Load reads DATASET_* variables on top of the defaults
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	dir, err := parser.ExpandPath(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("cannot expand config directory: %w", err)
	}
	cfg.ConfigDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags or the environment may have broken
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP, BackendColly, BackendBrowser:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendHTTP, BackendColly, BackendBrowser)
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("max delay %v is below min delay %v", c.MaxDelay, c.MinDelay)
	}
	if c.ExtractMultiple < 1 {
		return fmt.Errorf("extract multiple must be at least 1, got %d", c.ExtractMultiple)
	}
	if c.PageRetries < 0 || c.DownloadRetries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.FPS)
	}
	if c.DedupThreshold < 0 {
		return fmt.Errorf("dedup threshold must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// MetadataPath is the metadata store file, metadata.json under Root unless set
func (c *Config) MetadataPath() string {
	if c.Metadata != "" {
		return c.Metadata
	}
	return filepath.Join(c.Root, "metadata.json")
}

// EnsureConfigDir creates the config directory if needed
func (c *Config) EnsureConfigDir() (string, error) {
	_, err := os.Stat(c.ConfigDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(c.ConfigDir, 0755); err != nil {
			return "", fmt.Errorf("error creating directory %s: %w", c.ConfigDir, err)
		}
		log.Debugf("[Config] Directory %s created", c.ConfigDir)
	} else if err != nil {
		return "", fmt.Errorf("error checking directory %s: %w", c.ConfigDir, err)
	}
	return c.ConfigDir, nil
}
