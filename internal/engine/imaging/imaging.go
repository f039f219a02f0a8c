// Package imaging decodes, size-bounds, and re-encodes hazard photographs.
package imaging

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Registered decoders.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/crimson-sun/hazardscope/internal/model"
)

const (
	// MaxSide bounds both dimensions of a normalized image.
	MaxSide = 1024
	// JPEGQuality is the fixed quality used by Encode.
	JPEGQuality = 85
	// DefaultMaxFileSize is the largest file Check accepts.
	DefaultMaxFileSize = 16 << 20
)

// AllowedExtensions are the upload and ingestion file types.
var AllowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Load opens and normalizes the image at path.
func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Decode reads an image and normalizes it: pixels are converted to opaque
// RGB (alpha composited over white) and, if either side exceeds MaxSide,
// the image is downsampled preserving aspect ratio.
func Decode(r io.Reader) (*image.RGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", model.ErrDecode)
	}
	return Normalize(src), nil
}

// Normalize converts src to an opaque RGBA image bounded by MaxSide.
func Normalize(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), MaxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	return dst
}

// FitWithin scales (w, h) down so neither side exceeds limit, preserving
// aspect ratio. Sizes already within bounds are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := max(1, h*limit/w)
		return limit, nh
	}
	nw := max(1, w*limit/h)
	return nw, limit
}

// Encode renders img as JPEG at JPEGQuality for transport to a generative backend.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate reports whether the file at path has a decodable image header.
// Pixel data is not materialized.
func Validate(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	return err == nil && cfg.Width > 0 && cfg.Height > 0
}

// Check runs the ingestion and upload gate: existence, size limit, allowed
// extension, and header integrity. It returns an empty reason on success.
func Check(path string, maxSize int64) (ok bool, reason string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, "file does not exist"
	}
	if info.IsDir() {
		return false, "path is a directory"
	}
	if maxSize > 0 && info.Size() > maxSize {
		return false, fmt.Sprintf("file too large (%d bytes, limit %d)", info.Size(), maxSize)
	}
	if !AllowedExtensions[strings.ToLower(filepath.Ext(path))] {
		return false, "unsupported file type"
	}
	if !Validate(path) {
		return false, "not a valid image"
	}
	return true, ""
}
