package camera

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"gocv.io/x/gocv"
)

// warmupReads bounds how many empty reads a new sink tolerates; cameras
// often deliver a few blank frames right after opening.
const warmupReads = 30

// Stream is an open OpenCV capture with a single video track.
type Stream struct {
	host  *Host
	index int
	track *Track

	mu     sync.Mutex // serialises reads and close
	cam    *gocv.VideoCapture
	closed atomic.Bool
}

func newStream(h *Host, index int, cam *gocv.VideoCapture) *Stream {
	s := &Stream{host: h, index: index, cam: cam}
	s.track = &Track{id: uuid.New().String(), stream: s}
	s.track.enabled.Store(true)
	return s
}

// DeviceID returns the device index as a string.
func (s *Stream) DeviceID() string {
	return fmt.Sprint(s.index)
}

// Active reports whether the capture is still open.
func (s *Stream) Active() bool {
	return !s.closed.Load()
}

// Tracks returns the single video track.
func (s *Stream) Tracks() []capture.Track {
	return []capture.Track{s.track}
}

// Attach starts a sink that reads the next frame from the device.
func (s *Stream) Attach() capture.Sink {
	return newSink(s)
}

func (s *Stream) read(dst *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return capture.ErrStreamNotActive
	}
	if ok := s.cam.Read(dst); !ok || dst.Empty() {
		return ErrNoFrame
	}
	return nil
}

func (s *Stream) stop() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	s.cam.Close()
	s.mu.Unlock()

	s.host.release(s)
}

// Track is the video track of a Stream. Stopping it closes the device.
type Track struct {
	id      string
	stream  *Stream
	enabled atomic.Bool
}

func (t *Track) ID() string   { return t.id }
func (t *Track) Kind() string { return "video" }

// Enabled reports whether the track is enabled.
func (t *Track) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled toggles the track without closing the device.
func (t *Track) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Stop closes the device.
func (t *Track) Stop() {
	t.stream.stop()
}

// sink reads one frame in the background and serves it to Draw.
type sink struct {
	stream  *Stream
	mat     gocv.Mat
	playing chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

func newSink(s *Stream) *sink {
	k := &sink{
		stream:  s,
		mat:     gocv.NewMat(),
		playing: make(chan struct{}),
	}
	go k.render()
	return k
}

func (k *sink) render() {
	var err error
	defer func() {
		k.mu.Lock()
		k.err = err
		if k.closed {
			k.mat.Close()
		}
		close(k.playing)
		k.mu.Unlock()
	}()

	for i := 0; i < warmupReads; i++ {
		err = k.stream.read(&k.mat)
		if err == nil || errors.Is(err, capture.ErrStreamNotActive) {
			return
		}
	}
}

func (k *sink) Playing() <-chan struct{} {
	return k.playing
}

func (k *sink) Draw() (*image.RGBA, error) {
	select {
	case <-k.playing:
	default:
		return nil, ErrNoFrame
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, ErrSinkClosed
	}
	if k.err != nil {
		return nil, k.err
	}

	img, err := k.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return toRGBA(img), nil
}

func (k *sink) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	select {
	case <-k.playing:
		k.mat.Close()
	default:
		// render frees the mat when it finishes
	}
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
