package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const (
	maxLogSize  = 10 * 1024 * 1024 // 10MB
	maxLogFiles = 3                // Keep 3 backup files
	LogFileName = "datasetscraper.log"
)

// LogPath is where SetupLogging writes
func (c *Config) LogPath() string {
	return filepath.Join(c.ConfigDir, LogFileName)
}

// SetupLogging configures the global logrus logger: level, full
// timestamps, and a copy of everything in the rotating log file.
// The returned closer releases the file; it is a no-op without one.
func SetupLogging(cfg *Config, console io.Writer) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if !cfg.LogToFile {
		log.SetOutput(console)
		return io.NopCloser(nil), nil
	}

	if _, err := cfg.EnsureConfigDir(); err != nil {
		return nil, err
	}
	file, err := openLogFile(cfg.LogPath(), maxLogSize, maxLogFiles)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(console, file))
	log.Debugf("[Config] Logging to %s (level %s)", cfg.LogPath(), level)
	return file, nil
}

// openLogFile opens path for appending, rotating it first when it has
// grown past maxSize.
func openLogFile(path string, maxSize int64, backups int) (*os.File, error) {
	if info, err := os.Stat(path); err == nil && info.Size() >= maxSize {
		if err := rotateLogs(path, backups); err != nil {
			return nil, fmt.Errorf("failed to rotate logs: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// rotateLogs shifts path.1..path.N-1 up by one, drops path.N and moves
// the live log to path.1.
func rotateLogs(path string, backups int) error {
	os.Remove(fmt.Sprintf("%s.%d", path, backups))

	for i := backups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}

	if err := os.Rename(path, path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
