package models

import "strings"

// Mode selects how image URLs are pulled out of a gallery page.
type Mode string

const (
	ModeAuto    Mode = "auto"    // Let the site registry decide from the page URL
	ModeGeneric Mode = "generic" // Structured DOM traversal with a CSS selector
	ModeSearch  Mode = "search"  // Regex scan of raw page text (search-engine results)
)

// ParseMode converts user input into a Mode. Unknown values return false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeGeneric:
		return ModeGeneric, true
	case ModeSearch:
		return ModeSearch, true
	}
	return "", false
}

// Site describes a gallery source known to the site registry.
// Name is used internally, DisplayName is what the terminal shows.
type Site struct {
	Name        string `json:"name"`         // Internal identifier (e.g., "google")
	DisplayName string `json:"display_name"` // User-facing name (e.g., "Google Images")
	Mode        Mode   `json:"mode"`         // Extraction mode the site needs
}

// SourceKind identifies where a dataset image came from.
type SourceKind string

const (
	SourceGallery SourceKind = "gallery"
	SourceVideo   SourceKind = "video"
	SourceFrame   SourceKind = "video_frame"
)
