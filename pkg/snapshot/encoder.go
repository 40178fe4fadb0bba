// Package snapshot encodes sampled frames as still images with OpenCV.
package snapshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/teslashibe/go-qrcam/pkg/capture"
	"gocv.io/x/gocv"
)

// Format is a still-image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// DefaultJPEGQuality is used when no quality is given.
const DefaultJPEGQuality = 90

var (
	// ErrUnsupportedFormat is returned for formats other than PNG and JPEG.
	ErrUnsupportedFormat = errors.New("snapshot: unsupported format")

	// ErrEmptyImage is returned for zero-sized pictures.
	ErrEmptyImage = errors.New("snapshot: empty image")
)

// Encoder implements capture.Encoder.
type Encoder struct {
	format  Format
	quality int
}

// NewEncoder returns an encoder for format. quality applies to JPEG only;
// values outside 1-100 fall back to DefaultJPEGQuality.
func NewEncoder(format Format, quality int) (*Encoder, error) {
	switch format {
	case PNG, JPEG:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Encoder{format: format, quality: quality}, nil
}

// Format returns the output format.
func (e *Encoder) Format() Format {
	return e.format
}

// MIMEType returns the media type of encoded images.
func (e *Encoder) MIMEType() string {
	if e.format == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode implements capture.Encoder.
func (e *Encoder) Encode(img image.Image) (capture.EncodedImage, error) {
	if img == nil || img.Bounds().Empty() {
		return capture.EncodedImage{}, ErrEmptyImage
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return capture.EncodedImage{}, fmt.Errorf("snapshot: convert image: %w", err)
	}
	defer mat.Close()

	var buf *gocv.NativeByteBuffer
	if e.format == JPEG {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), e.quality})
	} else {
		buf, err = gocv.IMEncode(gocv.PNGFileExt, mat)
	}
	if err != nil {
		return capture.EncodedImage{}, fmt.Errorf("snapshot: encode %s: %w", e.format, err)
	}
	defer buf.Close()

	// The buffer is native memory; copy before it is freed.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return capture.EncodedImage{MIMEType: e.MIMEType(), Data: data}, nil
}
