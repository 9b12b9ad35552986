package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

// Config sizes generated previews.
type Config struct {
	Enabled     bool `mapstructure:"enabled"`
	Width       int  `mapstructure:"thumbnail_width"`
	Height      int  `mapstructure:"thumbnail_height"`
	JPEGQuality int  `mapstructure:"jpeg_quality"`
}

// Thumbnailer writes a JPEG preview next to uploaded images.
type Thumbnailer struct {
	store   storage.Storage
	width   int
	height  int
	quality int
}

func NewThumbnailer(store storage.Storage, cfg Config) *Thumbnailer {
	if cfg.Width <= 0 {
		cfg.Width = 320
	}
	if cfg.Height <= 0 {
		cfg.Height = 320
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 80
	}
	return &Thumbnailer{store: store, width: cfg.Width, height: cfg.Height, quality: cfg.JPEGQuality}
}

// Supports reports whether contentType is an image format the decoder reads.
func Supports(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// ThumbnailKey is the storage key of the preview for key.
func ThumbnailKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + ".thumb.jpg"
}

// Generate decodes r, fits it inside the configured box keeping the aspect
// ratio and stores the result under ThumbnailKey(key).
func (t *Thumbnailer) Generate(ctx context.Context, key string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, t.width, t.height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	outKey := ThumbnailKey(key)
	if err := t.store.Write(ctx, outKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str("key", outKey).Int("bytes", buf.Len()).Msg("thumbnail stored")
	return outKey, nil
}
