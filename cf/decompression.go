package cf

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly"
	log "github.com/sirupsen/logrus"
)

// DecompressBody returns body decoded according to its magic bytes and
// Content-Encoding. Bodies that are not compressed come back unchanged.
func DecompressBody(body []byte, contentEncoding string) ([]byte, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	// gzip magic bytes 1f 8b
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, false, err
		}
		return decompressed, true, nil
	}

	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	if encoding == "deflate" {
		reader, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return body, false, nil
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return body, false, nil
		}
		return decompressed, true, nil
	}

	// Brotli has no magic bytes, so only trust the header or a likely first byte
	if encoding == "br" || (body[0] >= 0x80 && body[0] <= 0x8f) {
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body, false, nil
		}
		return decompressed, true, nil
	}

	return body, false, nil
}

// DecompressResponse decodes a colly response body in place.
// Call it from OnResponse before parsing.
func DecompressResponse(r *colly.Response, logPrefix string) (bool, error) {
	if r == nil || len(r.Body) == 0 {
		return false, nil
	}
	if logPrefix == "" {
		logPrefix = "[Decompress]"
	}

	encoding := ""
	if r.Headers != nil {
		encoding = r.Headers.Get("Content-Encoding")
	}

	originalSize := len(r.Body)
	decompressed, ok, err := DecompressBody(r.Body, encoding)
	if err != nil {
		return false, err
	}
	if ok {
		r.Body = decompressed
		log.Debugf("%s Decompressed: %d bytes → %d bytes", logPrefix, originalSize, len(decompressed))
	}
	return ok, nil
}
