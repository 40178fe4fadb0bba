// Package capture manages a single live camera stream: acquiring and
// releasing it, switching between devices, sampling still frames and
// running continuous QR recognition over them.
//
// The host platform is reached only through the interfaces in this file.
// pkg/camera (local gocv devices) and pkg/video (remote WebRTC cameras)
// provide production implementations; mock.go provides test doubles.
package capture

import (
	"context"
	"encoding/base64"
	"image"
)

// DeviceKind classifies an enumerated device.
type DeviceKind string

const (
	KindVideoInput DeviceKind = "videoinput"
	KindAudioInput DeviceKind = "audioinput"
	KindOther      DeviceKind = "other"
)

// DeviceDescriptor describes one device as reported by a single
// enumeration call. Descriptors are never cached.
type DeviceDescriptor struct {
	DeviceID string     `json:"device_id"`
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
}

// Track is one media channel of a stream.
type Track interface {
	ID() string
	Kind() string
	Enabled() bool
	// Stop ends the track. Stopping a stopped track does nothing.
	Stop()
}

// Sink is an off-screen video element bound to a stream.
type Sink interface {
	// Playing is closed once the sink has rendered its first frame, or
	// once it knows it never will (Draw then returns the reason).
	Playing() <-chan struct{}

	// Draw copies the current picture at the stream's native size.
	Draw() (*image.RGBA, error)

	// Close detaches the sink from the stream. The stream keeps running.
	Close() error
}

// Stream is a running video source handed out by an Acquirer.
type Stream interface {
	// Active reports whether the stream is live.
	Active() bool

	// Tracks returns the stream's tracks in order.
	Tracks() []Track

	// Attach binds a new sink to the stream.
	Attach() Sink
}

// Enumerator lists the host's media devices.
type Enumerator interface {
	EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error)
}

// Acquirer opens streams.
type Acquirer interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// FrameClock paces the recognition loop at one tick per displayed frame.
type FrameClock interface {
	// Wait blocks until the next tick or until ctx is done.
	Wait(ctx context.Context) error
}

// Inversion controls whether the decoder also looks for light-on-dark codes.
type Inversion string

const (
	DontInvert  Inversion = "dontInvert"
	OnlyInvert  Inversion = "onlyInvert"
	AttemptBoth Inversion = "attemptBoth"
	InvertFirst Inversion = "invertFirst"
)

// DecodeOptions are passed through to the Decoder.
type DecodeOptions struct {
	Inversion Inversion
}

// Decoder looks for a QR code in an RGBA pixel buffer.
type Decoder interface {
	Decode(data []byte, width, height int, opts DecodeOptions) (payload string, found bool, err error)
}

// Encoder turns a sampled picture into a portable still image.
type Encoder interface {
	Encode(img image.Image) (EncodedImage, error)
}

// Frame is one still picture sampled from the active stream.
type Frame struct {
	Image *image.RGBA
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// PixelBuffer returns the raw RGBA pixels and dimensions.
func (f Frame) PixelBuffer() PixelBuffer {
	if f.Image == nil {
		return PixelBuffer{}
	}
	w, h := f.Width(), f.Height()
	row := 4 * w
	start := f.Image.PixOffset(f.Image.Rect.Min.X, f.Image.Rect.Min.Y)
	if f.Image.Stride == row {
		return PixelBuffer{Data: f.Image.Pix[start : start+row*h], Width: w, Height: h}
	}
	data := make([]byte, row*h)
	for y := 0; y < h; y++ {
		off := start + y*f.Image.Stride
		copy(data[y*row:(y+1)*row], f.Image.Pix[off:off+row])
	}
	return PixelBuffer{Data: data, Width: w, Height: h}
}

// PixelBuffer is tightly packed RGBA, 4 bytes per pixel.
type PixelBuffer struct {
	Data   []byte
	Width  int
	Height int
}

// EncodedImage is a still image in a portable format.
type EncodedImage struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the image as a data: URI.
func (e EncodedImage) DataURI() string {
	return "data:" + e.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// RecognitionResult is the outcome of one decode attempt.
type RecognitionResult struct {
	Payload string `json:"payload,omitempty"`
	Found   bool   `json:"found"`
}
