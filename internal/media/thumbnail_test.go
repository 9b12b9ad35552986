package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

func TestSupports(t *testing.T) {
	tests := map[string]bool{
		"image/png":                true,
		"IMAGE/JPEG":               true,
		"image/jpeg; charset=x":    true,
		"image/svg+xml":            false,
		"application/octet-stream": false,
		"":                         false,
	}
	for ct, want := range tests {
		if got := Supports(ct); got != want {
			t.Errorf("Supports(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestThumbnailKey(t *testing.T) {
	if got := ThumbnailKey("2026/03/01/abc.png"); got != "2026/03/01/abc.thumb.jpg" {
		t.Errorf("ThumbnailKey = %q", got)
	}
	if got := ThumbnailKey("noext"); got != "noext.thumb.jpg" {
		t.Errorf("ThumbnailKey = %q", got)
	}
}

func TestGenerate_FitsInsideBox(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), URLPrefix: "/uploads"})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	src := image.NewRGBA(image.Rect(0, 0, 800, 400))
	for x := 0; x < 800; x++ {
		for y := 0; y < 400; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var raw bytes.Buffer
	if err := png.Encode(&raw, src); err != nil {
		t.Fatalf("encode source: %v", err)
	}

	th := NewThumbnailer(store, Config{Width: 200, Height: 200})
	key, err := th.Generate(ctx, "a/pic.png", &raw)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if key != "a/pic.thumb.jpg" {
		t.Errorf("key = %q", key)
	}

	rc, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("thumbnail is %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestGenerate_RejectsNonImage(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	th := NewThumbnailer(store, Config{})
	if _, err := th.Generate(context.Background(), "x.png", bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error")
	}
}
