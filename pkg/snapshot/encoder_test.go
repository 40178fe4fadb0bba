package snapshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/teslashibe/go-qrcam/pkg/capture"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 0x80, A: 0xff})
		}
	}
	return img
}

func TestNewEncoder(t *testing.T) {
	if _, err := NewEncoder("gif", 0); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	e, err := NewEncoder(JPEG, 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if e.quality != DefaultJPEGQuality {
		t.Errorf("quality = %d, want default", e.quality)
	}
	if e.MIMEType() != "image/jpeg" {
		t.Errorf("MIMEType = %q", e.MIMEType())
	}
}

func TestEncode_PNG(t *testing.T) {
	e, err := NewEncoder(PNG, 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	out, err := e.Encode(testImage(40, 30))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if out.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", out.MIMEType)
	}

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("decoded size %v, want 40x30", b)
	}
	if !strings.HasPrefix(out.DataURI(), "data:image/png;base64,") {
		t.Errorf("unexpected data URI prefix")
	}
}

func TestEncode_JPEG(t *testing.T) {
	e, err := NewEncoder(JPEG, 75)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	out, err := e.Encode(testImage(32, 16))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("decoded size %v, want 32x16", b)
	}
}

func TestEncode_Empty(t *testing.T) {
	e, _ := NewEncoder(PNG, 0)
	if _, err := e.Encode(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestEncoder_ImplementsCaptureEncoder(t *testing.T) {
	var _ capture.Encoder = (*Encoder)(nil)
}
