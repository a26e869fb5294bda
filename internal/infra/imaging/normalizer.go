package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saurav7sc/mayalens/internal/domain/reading"
)

const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85

	// DefaultMaxPixels matches Pillow's decompression bomb threshold.
	DefaultMaxPixels = 89_478_485
)

const (
	heicMessage    = "HEIC format is not supported. Please convert your image to JPEG or PNG format before uploading."
	invalidMessage = "Invalid image format. Please upload a valid palm image."
	bombMessage    = "Image dimensions are too large. Please upload a smaller photo of your palm."
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var heicExtensions = map[string]bool{
	".heic": true,
	".heif": true,
}

var heicContentTypes = map[string]bool{
	"image/heic":          true,
	"image/heif":          true,
	"image/heic-sequence": true,
	"image/heif-sequence": true,
}

// Normalizer validates uploads and recompresses them into bounded JPEGs.
type Normalizer struct {
	MaxDimension int
	Quality      int
	MaxPixels    int64
}

func NewNormalizer(maxDimension, quality int, maxPixels int64) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Normalizer{MaxDimension: maxDimension, Quality: quality, MaxPixels: maxPixels}
}

// IsHEIC reports whether the name or declared type belongs to the HEIC family.
func IsHEIC(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return heicExtensions[ext] || heicContentTypes[ct]
}

// ValidateUpload is the authoritative gate: HEIC is refused with guidance,
// then the extension must be allowed, the header must declare a bounded
// pixel count, and the bytes must fully decode. The decoded image is
// returned so it is only decoded once.
func (n *Normalizer) ValidateUpload(filename, contentType string, data []byte) (image.Image, error) {
	if IsHEIC(filename, contentType) {
		return nil, reading.NewValidationError(reading.ErrUnsupportedFormat, heicMessage)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, reading.NewValidationError(reading.ErrInvalidImage, invalidMessage)
	}
	if len(data) == 0 {
		return nil, reading.NewValidationError(reading.ErrInvalidImage, invalidMessage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, reading.NewValidationError(reading.ErrInvalidImage, invalidMessage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > n.MaxPixels {
		return nil, reading.NewValidationError(reading.ErrInvalidImage, bombMessage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, reading.NewValidationError(reading.ErrInvalidImage, invalidMessage)
	}
	return img, nil
}

// Normalize flattens src onto an opaque RGB canvas, downsizes it so neither
// edge exceeds MaxDimension, and encodes it as JPEG.
func (n *Normalizer) Normalize(src image.Image) ([]byte, error) {
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), n.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// fitWithin scales (w, h) so the longest edge is at most limit, keeping the aspect ratio.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, atLeastOne(h * limit / w)
	}
	return atLeastOne(w * limit / h), limit
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
