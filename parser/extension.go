package parser

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// DefaultImageExt is used when neither the content type nor the URL say anything useful
const DefaultImageExt = ".jpg"

var contentTypeExt = map[string]string{
	"image/jpeg":     ".jpg",
	"image/jpg":      ".jpg",
	"image/pjpeg":    ".jpg",
	"image/png":      ".png",
	"image/gif":      ".gif",
	"image/webp":     ".webp",
	"image/bmp":      ".bmp",
	"image/x-ms-bmp": ".bmp",
	"image/avif":     ".avif",
	"image/svg+xml":  ".svg",
	"image/tiff":     ".tiff",
	"image/x-icon":   ".ico",
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".avif": true, ".svg": true, ".tiff": true, ".tif": true, ".ico": true,
}

// IsImageExt reports whether ext (with dot, any case) is a known image extension
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

// IsImageContentType reports whether a Content-Type header names an image
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// ExtensionFor picks a file extension for a downloaded image.
// Order: known content type, system mime table, URL path extension, DefaultImageExt.
func ExtensionFor(contentType, rawURL string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	if ext, ok := contentTypeExt[mediaType]; ok {
		return ext
	}

	if mediaType != "" {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil {
			for _, ext := range exts {
				if IsImageExt(ext) {
					return strings.ToLower(ext)
				}
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == ".jpeg" {
			return ".jpg"
		}
		if IsImageExt(ext) {
			return ext
		}
	}

	return DefaultImageExt
}
