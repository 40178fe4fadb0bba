package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
)

// MockHost is an in-memory host for tests. It enumerates Devices and
// hands out MockStreams that render solid frames of Width x Height.
type MockHost struct {
	mu sync.Mutex

	Devices      []DeviceDescriptor
	EnumerateErr error
	AcquireErr   error
	Width        int
	Height       int

	// HoldFirstFrame keeps new sinks from playing until ReleaseFrames.
	HoldFirstFrame bool

	acquired     []*MockStream
	requests     []Constraints
	enumerations atomic.Int64
}

// NewMockHost returns a host with the given devices and 64x48 frames.
func NewMockHost(devices ...DeviceDescriptor) *MockHost {
	return &MockHost{Devices: devices, Width: 64, Height: 48}
}

// VideoDevice is a shorthand for a video input descriptor.
func VideoDevice(id, label string) DeviceDescriptor {
	return DeviceDescriptor{DeviceID: id, Kind: KindVideoInput, Label: label}
}

// EnumerateDevices returns a copy of Devices.
func (h *MockHost) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	h.enumerations.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.EnumerateErr != nil {
		return nil, h.EnumerateErr
	}
	out := make([]DeviceDescriptor, len(h.Devices))
	copy(out, h.Devices)
	return out, nil
}

// Acquire records the request and returns a new live MockStream.
func (h *MockHost) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, c)
	if h.AcquireErr != nil {
		return nil, h.AcquireErr
	}
	stream := NewMockStream(fmt.Sprintf("stream-%d", len(h.acquired)+1), h.Width, h.Height)
	stream.holdFirstFrame = h.HoldFirstFrame
	h.acquired = append(h.acquired, stream)
	return stream, nil
}

// Streams returns every stream handed out so far.
func (h *MockHost) Streams() []*MockStream {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*MockStream, len(h.acquired))
	copy(out, h.acquired)
	return out
}

// Requests returns the constraints of every acquisition attempt.
func (h *MockHost) Requests() []Constraints {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Constraints, len(h.requests))
	copy(out, h.requests)
	return out
}

// LiveStreams counts streams that are still active.
func (h *MockHost) LiveStreams() int {
	n := 0
	for _, s := range h.Streams() {
		if s.Active() {
			n++
		}
	}
	return n
}

// Enumerations counts EnumerateDevices calls.
func (h *MockHost) Enumerations() int {
	return int(h.enumerations.Load())
}

// MockStream is a stream with one video track. It is active until every
// track has been stopped.
type MockStream struct {
	id     string
	width  int
	height int
	tracks []*MockTrack

	holdFirstFrame bool
	mu             sync.Mutex
	sinks          []*MockSink
	fill           color.RGBA
}

// NewMockStream returns a live stream with a single video track.
func NewMockStream(id string, width, height int) *MockStream {
	return &MockStream{
		id:     id,
		width:  width,
		height: height,
		tracks: []*MockTrack{NewMockTrack(id + "/video")},
		fill:   color.RGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xff},
	}
}

// ID returns the stream id.
func (m *MockStream) ID() string {
	return m.id
}

// Active reports whether any track is still running.
func (m *MockStream) Active() bool {
	for _, t := range m.tracks {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

// Tracks returns the stream's tracks.
func (m *MockStream) Tracks() []Track {
	out := make([]Track, len(m.tracks))
	for i, t := range m.tracks {
		out[i] = t
	}
	return out
}

// MockTracks returns the concrete tracks.
func (m *MockStream) MockTracks() []*MockTrack {
	return m.tracks
}

// AddTrack appends a track.
func (m *MockStream) AddTrack(t *MockTrack) {
	m.tracks = append(m.tracks, t)
}

// Attach returns a new sink. Unless the stream holds first frames, the
// sink is playing immediately.
func (m *MockStream) Attach() Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	sink := &MockSink{
		stream:  m,
		playing: make(chan struct{}),
	}
	if !m.holdFirstFrame {
		sink.play()
	}
	m.sinks = append(m.sinks, sink)
	return sink
}

// ReleaseFrames lets every held sink play.
func (m *MockStream) ReleaseFrames() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdFirstFrame = false
	for _, s := range m.sinks {
		s.play()
	}
}

// Sinks returns every sink attached so far.
func (m *MockStream) Sinks() []*MockSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockSink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

// MockTrack is a track that records Stop calls.
type MockTrack struct {
	id        string
	disabled  atomic.Bool
	stopped   atomic.Bool
	stopCalls atomic.Int64
}

// NewMockTrack returns an enabled running track.
func NewMockTrack(id string) *MockTrack {
	return &MockTrack{id: id}
}

func (t *MockTrack) ID() string   { return t.id }
func (t *MockTrack) Kind() string { return "video" }

// Enabled reports whether the track is enabled.
func (t *MockTrack) Enabled() bool {
	return !t.disabled.Load()
}

// SetEnabled toggles the track.
func (t *MockTrack) SetEnabled(enabled bool) {
	t.disabled.Store(!enabled)
}

// Stop ends the track.
func (t *MockTrack) Stop() {
	t.stopCalls.Add(1)
	t.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (t *MockTrack) Stopped() bool {
	return t.stopped.Load()
}

// StopCalls counts Stop calls.
func (t *MockTrack) StopCalls() int {
	return int(t.stopCalls.Load())
}

// MockSink renders solid frames in the stream's fill colour.
type MockSink struct {
	stream   *MockStream
	playing  chan struct{}
	playOnce sync.Once
	closed   atomic.Bool
}

func (s *MockSink) play() {
	s.playOnce.Do(func() { close(s.playing) })
}

// Playing is closed once the sink is playing.
func (s *MockSink) Playing() <-chan struct{} {
	return s.playing
}

// Draw returns a solid frame.
func (s *MockSink) Draw() (*image.RGBA, error) {
	if s.closed.Load() {
		return nil, errors.New("mock sink closed")
	}
	img := image.NewRGBA(image.Rect(0, 0, s.stream.width, s.stream.height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = s.stream.fill.R
		img.Pix[i+1] = s.stream.fill.G
		img.Pix[i+2] = s.stream.fill.B
		img.Pix[i+3] = s.stream.fill.A
	}
	return img, nil
}

// Close marks the sink closed.
func (s *MockSink) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (s *MockSink) Closed() bool {
	return s.closed.Load()
}

// MockDecoder answers from a function of the call number (1-based).
// With a nil Func it never finds a code.
type MockDecoder struct {
	Func func(call int) (string, bool, error)

	mu    sync.Mutex
	calls int
	opts  []DecodeOptions
}

// Decode implements Decoder.
func (d *MockDecoder) Decode(data []byte, width, height int, opts DecodeOptions) (string, bool, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.opts = append(d.opts, opts)
	fn := d.Func
	d.mu.Unlock()

	if len(data) != width*height*4 {
		return "", false, fmt.Errorf("mock decoder: %d bytes for %dx%d", len(data), width, height)
	}
	if fn == nil {
		return "", false, nil
	}
	return fn(call)
}

// Calls counts Decode calls.
func (d *MockDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Options returns the options of every call.
func (d *MockDecoder) Options() []DecodeOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DecodeOptions, len(d.opts))
	copy(out, d.opts)
	return out
}

// MockEncoder "encodes" a picture as its dimensions.
type MockEncoder struct {
	Err error
}

// Encode implements Encoder.
func (e *MockEncoder) Encode(img image.Image) (EncodedImage, error) {
	if e.Err != nil {
		return EncodedImage{}, e.Err
	}
	b := img.Bounds()
	return EncodedImage{
		MIMEType: "image/x-mock",
		Data:     []byte(fmt.Sprintf("%dx%d", b.Dx(), b.Dy())),
	}, nil
}

// ManualClock ticks only when the test calls Tick.
type ManualClock struct {
	ticks chan struct{}
}

// NewManualClock returns a clock with no pending ticks.
func NewManualClock() *ManualClock {
	return &ManualClock{ticks: make(chan struct{})}
}

// Wait blocks until Tick or ctx is done.
func (c *ManualClock) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticks:
		return nil
	}
}

// Tick hands one tick to a waiting loop. It returns once the loop has
// taken it, which also means the previous iteration has finished.
func (c *ManualClock) Tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.ticks <- struct{}{}:
		return nil
	}
}
