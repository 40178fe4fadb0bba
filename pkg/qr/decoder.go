// Package qr decodes QR codes from RGBA pixel buffers with OpenCV.
package qr

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-qrcam/pkg/capture"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("qr: invalid image size")

	// ErrBufferSize is returned when the buffer does not hold width*height RGBA pixels.
	ErrBufferSize = errors.New("qr: buffer does not match image size")

	// ErrUnknownInversion is returned for unrecognised inversion modes.
	ErrUnknownInversion = errors.New("qr: unknown inversion mode")
)

// Decoder wraps OpenCV's QRCodeDetector. It is safe for concurrent use.
type Decoder struct {
	detector gocv.QRCodeDetector
	mu       sync.Mutex // Protects detection
	logger   *slog.Logger
}

// NewDecoder creates a decoder. Call Close to release it.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		detector: gocv.NewQRCodeDetector(),
		logger:   logger,
	}
}

// Decode implements capture.Decoder.
func (d *Decoder) Decode(data []byte, width, height int, opts capture.DecodeOptions) (string, bool, error) {
	if width <= 0 || height <= 0 {
		return "", false, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if len(data) != width*height*4 {
		return "", false, fmt.Errorf("%w: %d bytes for %dx%d", ErrBufferSize, len(data), width, height)
	}
	passes, err := inversionPasses(opts.Inversion)
	if err != nil {
		return "", false, err
	}

	rgba, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, data)
	if err != nil {
		return "", false, fmt.Errorf("qr: wrap buffer: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)

	for _, invert := range passes {
		payload := d.decodePass(gray, invert)
		if payload != "" {
			d.logger.Debug("qr code decoded", "bytes", len(payload), "inverted", invert)
			return payload, true, nil
		}
	}
	return "", false, nil
}

func (d *Decoder) decodePass(gray gocv.Mat, invert bool) string {
	img := gray
	if invert {
		inverted := gocv.NewMat()
		defer inverted.Close()
		gocv.BitwiseNot(gray, &inverted)
		img = inverted
	}

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector.DetectAndDecode(img, &points, &straight)
}

// Close releases the detector.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector.Close()
}

// inversionPasses lists, in order, whether each decode pass inverts the image.
func inversionPasses(mode capture.Inversion) ([]bool, error) {
	switch mode {
	case capture.DontInvert, "":
		return []bool{false}, nil
	case capture.OnlyInvert:
		return []bool{true}, nil
	case capture.AttemptBoth:
		return []bool{false, true}, nil
	case capture.InvertFirst:
		return []bool{true, false}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInversion, mode)
	}
}
