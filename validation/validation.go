package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"datasetscraper/models"

	"github.com/andybalholm/cascadia"
)

// GalleryRequest is what a user asks for on the gallery command
type GalleryRequest struct {
	PageURL   string
	Selector  string
	Count     int
	OutputDir string
	Mode      string
	Prefix    string
}

// ValidateGalleryRequest checks a gallery request before any network
// work. It only works with raw values, so front ends can share it.
func ValidateGalleryRequest(req GalleryRequest) (models.Mode, error) {
	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		return "", fmt.Errorf("unknown mode %q (want auto, generic or search)", req.Mode)
	}

	if strings.TrimSpace(req.PageURL) == "" {
		return "", errors.New("URL is required")
	}
	u, err := url.Parse(req.PageURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("URL has no host")
	}

	if req.Count <= 0 {
		return "", fmt.Errorf("count must be positive, got %d", req.Count)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return "", errors.New("output directory is required")
	}

	if sel := strings.TrimSpace(req.Selector); sel != "" {
		if mode == models.ModeSearch {
			return "", errors.New("a selector only applies in generic mode")
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return "", fmt.Errorf("invalid selector %q: %w", sel, err)
		}
	}

	if req.Prefix != "" {
		if err := ValidatePrefix(req.Prefix); err != nil {
			return "", err
		}
	}
	return mode, nil
}

// ValidatePrefix rejects filename prefixes that would escape the output
// directory or confuse the ordinal naming
func ValidatePrefix(prefix string) error {
	if strings.ContainsAny(prefix, `/\:*?"<>|`) {
		return fmt.Errorf("prefix %q contains characters not allowed in filenames", prefix)
	}
	if prefix == "." || prefix == ".." || strings.HasPrefix(prefix, ".") {
		return fmt.Errorf("prefix %q must not start with a dot", prefix)
	}
	return nil
}

// ValidateVideoRequest checks the video command's query and count
func ValidateVideoRequest(source string, max int, fps float64) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("a search query or video URL is required")
	}
	if max <= 0 {
		return fmt.Errorf("max videos must be positive, got %d", max)
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %v", fps)
	}
	return nil
}
