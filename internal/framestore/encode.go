package framestore

import (
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// Encodings accepted by Encode.
const (
	EncodingJPEG = "jpeg"
	EncodingPNG  = "png"
)

// DefaultJPEGQuality is used when Encode is given a quality outside 1..100.
const DefaultJPEGQuality = 85

// ErrEmptyFrame is returned when encoding a frame with no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// Encode writes f to w as JPEG or PNG. quality only applies to JPEG.
func (f *Frame) Encode(w io.Writer, encoding string, quality int) error {
	if f.Empty() {
		return ErrEmptyFrame
	}
	switch encoding {
	case EncodingJPEG, "jpg", "":
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, f.RGBA(), &jpeg.Options{Quality: quality})
	case EncodingPNG:
		return png.Encode(w, f.RGBA())
	default:
		return fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// ContentType returns the MIME type for an encoding.
func ContentType(encoding string) string {
	if encoding == EncodingPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// EncodingForPath picks an encoding from a file extension, defaulting to JPEG.
func EncodingForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return EncodingPNG
	}
	return EncodingJPEG
}
