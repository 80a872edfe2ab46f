package thumbnails

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 256
	DefaultQuality      = 80
	// DefaultMaxPixels bounds the decoded source size.
	DefaultMaxPixels  = 40_000_000
	ThumbnailMimeType = "image/jpeg"
)

// Generator turns images into JPEG thumbnails no larger than MaxDimension on
// either side. Images are never upscaled.
type Generator struct {
	MaxDimension int
	Quality      int
	// MaxPixels caps width*height of a source image before it is decoded.
	MaxPixels int
	now       func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
		MaxPixels:    DefaultMaxPixels,
		now:          time.Now,
	}
}

// Supports reports whether mimeType may have a thumbnail.
func Supports(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// fit scales w x h down to fit a limit x limit box, keeping the aspect ratio.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// Generate decodes src and returns a JPEG thumbnail. Content that is not a
// decodable image, or whose header declares more than MaxPixels pixels,
// yields common.ErrThumbnailUnsupported.
func (g *Generator) Generate(src []byte, mimeType string) ([]byte, ThumbnailMetadata, error) {
	if !Supports(mimeType) {
		return nil, ThumbnailMetadata{}, fmt.Errorf("%w: %s", common.ErrThumbnailUnsupported, mimeType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, ThumbnailMetadata{}, fmt.Errorf("%w: decode: %w", common.ErrThumbnailUnsupported, err)
	}
	if g.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(g.MaxPixels) {
		return nil, ThumbnailMetadata{}, fmt.Errorf("%w: image is %dx%d, above %d pixels",
			common.ErrThumbnailUnsupported, cfg.Width, cfg.Height, g.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, ThumbnailMetadata{}, fmt.Errorf("%w: decode: %w", common.ErrThumbnailUnsupported, err)
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), g.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha channel; flatten onto white
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: g.Quality}); err != nil {
		return nil, ThumbnailMetadata{}, fmt.Errorf("encode thumbnail: %w", err)
	}

	return buf.Bytes(), ThumbnailMetadata{
		Width:     w,
		Height:    h,
		MimeType:  ThumbnailMimeType,
		Size:      buf.Len(),
		CreatedAt: g.now().UTC(),
	}, nil
}
