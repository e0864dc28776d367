package parser

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// DetectImageFormat reads the magic bytes and returns the image format name
func DetectImageFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg", nil
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png", nil
	}
	if string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a" {
		return "gif", nil
	}
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp", nil
	}
	if data[0] == 'B' && data[1] == 'M' {
		return "bmp", nil
	}
	if string(data[4:12]) == "ftypavif" {
		return "avif", nil
	}

	return "", errors.New("unknown image format")
}

// ConvertImageToJPEG re-encodes image bytes as JPEG into w.
// JPEG input is copied through untouched.
func ConvertImageToJPEG(imgBytes []byte, w io.Writer) error {
	if len(imgBytes) == 0 {
		return errors.New("empty image data")
	}

	format, err := DetectImageFormat(imgBytes)
	if err != nil {
		return err
	}

	if format == "jpeg" {
		_, err := w.Write(imgBytes)
		return err
	}

	var img image.Image
	reader := bytes.NewReader(imgBytes)

	switch format {
	case "png":
		img, err = png.Decode(reader)
	case "gif":
		img, err = gif.Decode(reader)
	case "webp":
		img, err = webp.Decode(reader)
	default:
		return errors.New("unsupported image format: " + format)
	}

	if err != nil {
		return errors.New("failed to decode " + format + " image: " + err.Error())
	}

	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(90))
}
